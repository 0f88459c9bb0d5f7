package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — task из API.
type TaskResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	SessionID        string         `json:"session_id,omitempty"`
	Status           string         `json:"status"`
	CurrentStepIndex int            `json:"current_step_index"`
	Progress         float64        `json:"progress"`
	TotalSteps       int            `json:"total_steps"`
	Steps            []any          `json:"steps,omitempty"`
	Result           map[string]any `json:"result,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        string         `json:"created_at"`
	StartedAt        string         `json:"started_at,omitempty"`
	FinishedAt       string         `json:"finished_at,omitempty"`
	Live             map[string]any `json:"live,omitempty"`
}

// ControlResponse — ответ на pause/resume/cancel.
type ControlResponse struct {
	TaskID  string `json:"task_id"`
	Action  string `json:"action"`
	Applied bool   `json:"applied"`
}

// InputResponse — wait шаг, ожидающий ввода.
type InputResponse struct {
	TaskID    string   `json:"task_id"`
	StepID    string   `json:"step_id"`
	Prompt    string   `json:"prompt"`
	InputType string   `json:"input_type"`
	Choices   []string `json:"choices,omitempty"`
	CreatedAt string   `json:"created_at"`
	ExpiresAt string   `json:"expires_at"`
}

// ProvideResponse — итог передачи ответа.
type ProvideResponse struct {
	TaskID   string `json:"task_id,omitempty"`
	StepID   string `json:"step_id"`
	Accepted bool   `json:"accepted"`

	// Forwarded — ответ разослан экземплярам, wait шаг выполняется не на этом.
	Forwarded bool `json:"forwarded"`
}

// ListTasksOpts — параметры фильтрации tasks.
type ListTasksOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conductor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает tasks с фильтрацией.
func (c *Client) ListTasks(opts ListTasksOpts) ([]TaskResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// CreateTask отправляет определение task (JSON или YAML).
func (c *Client) CreateTask(definition []byte, contentType string) (*TaskResponse, error) {
	resp, err := c.doRaw(http.MethodPost, "/api/v1/tasks", bytes.NewReader(definition), contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var task TaskResponse
	if err := c.decodeData(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask возвращает task по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get("/api/v1/tasks/"+id, &task)
	return &task, err
}

// ControlTask отправляет pause, resume или cancel.
func (c *Client) ControlTask(id, action string) (*ControlResponse, error) {
	var resp ControlResponse
	err := c.post("/api/v1/tasks/"+id+"/"+action, nil, &resp)
	return &resp, err
}

// --- Inputs ---

// ListInputs возвращает wait шаги, ожидающие ввода.
func (c *Client) ListInputs() ([]InputResponse, error) {
	var inputs []InputResponse
	err := c.list("/api/v1/inputs", nil, &inputs)
	return inputs, err
}

// ProvideInput передаёт ответ wait шагу.
// Пустой taskID — шаг ищется только по ID и должен быть однозначен.
func (c *Client) ProvideInput(taskID, stepID string, value any) (*ProvideResponse, error) {
	path := "/api/v1/inputs/" + stepID
	if taskID != "" {
		path = "/api/v1/inputs/" + taskID + "/" + stepID
	}

	var resp ProvideResponse
	err := c.post(path, map[string]any{"value": value}, &resp)
	return &resp, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeData(resp, result)
}

func (c *Client) decodeData(resp *http.Response, result any) error {
	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.doRaw(method, path, nil, "")
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doRaw(method, path, bytes.NewReader(data), "application/json")
}

func (c *Client) doRaw(method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
