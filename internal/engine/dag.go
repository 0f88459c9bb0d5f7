package engine

import (
	"fmt"

	"github.com/shaiso/conductor/internal/domain"
)

// Node — узел в графе зависимостей.
type Node struct {
	// Step — шаг верхнего уровня.
	Step *domain.Step

	// ID — идентификатор узла, совпадает с Step.ID.
	ID string

	// Index — позиция шага в списке task.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — граф зависимостей шагов task.
//
// Движок выполняет шаги в порядке списка; DAG используется при валидации,
// чтобы найти циклы и зависимости, объявленные после зависимого шага.
type DAG struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей, в порядке списка.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит граф из шагов верхнего уровня.
func BuildDAG(steps []domain.Step) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(steps)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	nodes := make([]*Node, len(steps))
	for i := range steps {
		step := &steps[i]
		node := &Node{
			Step:       step,
			ID:         step.ID,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[step.ID] = node
		nodes[i] = node
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range nodes {
		for _, depID := range node.Step.DependsOn {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				return nil, NewValidationError(node.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", depID), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	for _, node := range nodes {
		if node.InDegree == 0 {
			dag.RootNodes = append(dag.RootNodes, node)
		}
	}

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты игнорируются, чтобы не учитывать InDegree дважды.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// CheckListOrder проверяет, что каждая зависимость стоит в списке раньше
// зависимого шага. Только такой порядок выполним однопроходным обходом.
func (d *DAG) CheckListOrder() error {
	for _, node := range d.Order {
		for _, dep := range node.DependsOn {
			if dep.Index > node.Index {
				return NewValidationError(node.ID, "depends_on",
					fmt.Sprintf("depends on later step: %s", dep.ID), ErrForwardDependency)
			}
		}
	}
	return nil
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}
