package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
)

// Output печатает данные в stdout (таблица или JSON при --json),
// а сообщения для человека в stderr.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput пишет в stdout/stderr процесса.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo пишет в заданные writers.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// Print выводит jsonData в режиме JSON, иначе таблицу.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выравнивает колонки; пустой список — "(none)" в stderr.
func (o *Output) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(o.errW, "(none)")
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
}

// JSON печатает v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Error(err.Error())
	}
}

// Success — сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error — сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// TaskResult печатает результаты шагов и итоговую строку.
func (o *Output) TaskResult(result *domain.TaskResult) {
	if o.jsonMode {
		o.JSON(result)
		return
	}

	rows := make([][]string, len(result.StepResults))
	for i, r := range result.StepResults {
		detail := r.Error
		if r.IsCompleted() {
			detail = truncate(fmt.Sprint(r.Data), 60)
		}
		attempt := ""
		if r.Attempts > 0 {
			attempt = strconv.Itoa(r.Attempts)
		}
		rows[i] = []string{r.StepID, string(r.Status), attempt, r.Duration.Round(time.Millisecond).String(), detail}
	}
	o.Table([]string{"STEP", "STATUS", "ATTEMPT", "DURATION", "DATA / ERROR"}, rows)

	msg := fmt.Sprintf("Task %s %s: %d/%d steps completed in %s",
		result.TaskID, result.Status, result.CompletedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
	if len(result.DeferredSteps) > 0 {
		msg += ", deferred: " + strings.Join(result.DeferredSteps, ", ")
	}
	if result.Error != "" {
		msg += ", error: " + result.Error
	}
	o.Success(msg)
}

// Event печатает событие движка одной строкой.
func (o *Output) Event(ev events.Event) {
	if o.jsonMode {
		o.JSON(ev)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-15s task=%s", ev.Timestamp.Format(time.TimeOnly), ev.Type, ev.TaskID)
	if ev.StepID != "" {
		fmt.Fprintf(&b, " step=%s", ev.StepID)
	}
	switch {
	case ev.Result != nil:
		fmt.Fprintf(&b, " status=%s", ev.Result.Status)
		if ev.Result.Error != "" {
			fmt.Fprintf(&b, " error=%q", ev.Result.Error)
		}
	case ev.Type == events.TaskProgress:
		fmt.Fprintf(&b, " progress=%s", formatProgress(ev.Progress))
	case ev.Input != nil:
		fmt.Fprintf(&b, " prompt=%q", ev.Input.Prompt)
	case ev.TaskResult != nil:
		fmt.Fprintf(&b, " status=%s", ev.TaskResult.Status)
	}
	fmt.Fprintln(o.w, b.String())
}

func formatProgress(p float64) string {
	return strconv.FormatFloat(p, 'f', 0, 64) + "%"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
