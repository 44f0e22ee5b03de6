// Package model runs the multi-task classifier: a shared ReLU backbone
// feeding one logit head per task.
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/vietddude/scamradar/internal/core/domain"
)

// ErrUnknownTask is returned for a task without a head.
var ErrUnknownTask = errors.New("unknown task")

// Linear is a dense layer. Weight is row-major [out][in].
type Linear struct {
	Weight [][]float64 `json:"weight"`
	Bias   []float64   `json:"bias"`
}

func (l *Linear) in() int  { return len(l.Weight[0]) }
func (l *Linear) out() int { return len(l.Weight) }

// Weights is the serialized network.
type Weights struct {
	InputDim int                      `json:"input_dim"`
	Backbone []Linear                 `json:"backbone"`
	Heads    map[domain.Task][]Linear `json:"heads"`
}

// Model is an immutable, inference-only network. It is safe for
// concurrent use.
type Model struct {
	inputDim int
	backbone []dense
	heads    map[domain.Task][]dense
}

// dense is a Linear layer compiled to gonum matrices.
type dense struct {
	w *mat.Dense
	b *mat.VecDense
}

func compile(layers []Linear) []dense {
	out := make([]dense, len(layers))
	for i := range layers {
		l := &layers[i]
		w := mat.NewDense(l.out(), l.in(), nil)
		for r, row := range l.Weight {
			w.SetRow(r, row)
		}
		out[i] = dense{w: w, b: mat.NewVecDense(l.out(), append([]float64(nil), l.Bias...))}
	}
	return out
}

// New validates layer shapes and builds a model. Every backbone layer and
// every head layer except the last is followed by ReLU; each head ends in
// a single logit.
func New(w Weights) (*Model, error) {
	if w.InputDim <= 0 {
		return nil, fmt.Errorf("invalid input_dim %d", w.InputDim)
	}
	if len(w.Heads) == 0 {
		return nil, errors.New("model has no heads")
	}

	dim, err := checkStack("backbone", w.Backbone, w.InputDim)
	if err != nil {
		return nil, err
	}
	for task, head := range w.Heads {
		if len(head) == 0 {
			return nil, fmt.Errorf("head %s is empty", task)
		}
		out, err := checkStack("head "+string(task), head, dim)
		if err != nil {
			return nil, err
		}
		if out != 1 {
			return nil, fmt.Errorf("head %s outputs %d values, want 1", task, out)
		}
	}

	heads := make(map[domain.Task][]dense, len(w.Heads))
	for task, head := range w.Heads {
		heads[task] = compile(head)
	}
	return &Model{inputDim: w.InputDim, backbone: compile(w.Backbone), heads: heads}, nil
}

func checkStack(name string, layers []Linear, in int) (int, error) {
	for i := range layers {
		l := &layers[i]
		if len(l.Weight) == 0 || len(l.Weight[0]) == 0 {
			return 0, fmt.Errorf("%s layer %d: empty weight", name, i)
		}
		if l.in() != in {
			return 0, fmt.Errorf("%s layer %d: input %d, want %d", name, i, l.in(), in)
		}
		for r, row := range l.Weight {
			if len(row) != in {
				return 0, fmt.Errorf("%s layer %d row %d: length %d, want %d", name, i, r, len(row), in)
			}
		}
		if len(l.Bias) != l.out() {
			return 0, fmt.Errorf("%s layer %d: bias %d, want %d", name, i, len(l.Bias), l.out())
		}
		in = l.out()
	}
	return in, nil
}

// InputDim returns the expected vector length.
func (m *Model) InputDim() int {
	return m.inputDim
}

// Tasks returns the tasks the model has heads for.
func (m *Model) Tasks() []domain.Task {
	tasks := make([]domain.Task, 0, len(m.heads))
	for t := range m.heads {
		tasks = append(tasks, t)
	}
	return tasks
}

func (m *Model) layers(task domain.Task) ([]dense, error) {
	head, ok := m.heads[task]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	return head, nil
}

func (m *Model) checkInput(x []float64) error {
	if len(x) != m.inputDim {
		return fmt.Errorf("input has %d features, want %d", len(x), m.inputDim)
	}
	return nil
}

// Forward returns the pre-sigmoid logit of task for x.
func (m *Model) Forward(task domain.Task, x []float64) (float64, error) {
	head, err := m.layers(task)
	if err != nil {
		return 0, err
	}
	if err := m.checkInput(x); err != nil {
		return 0, err
	}

	a := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for i := range m.backbone {
		a = relu(m.backbone[i].apply(a))
	}
	for i := range head {
		a = head[i].apply(a)
		if i < len(head)-1 {
			a = relu(a)
		}
	}
	return a.AtVec(0), nil
}

// ForwardBatch returns one logit per row.
func (m *Model) ForwardBatch(task domain.Task, xs [][]float64) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, x := range xs {
		z, err := m.Forward(task, x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = z
	}
	return out, nil
}

// Gradient returns the logit of task for x and its gradient with respect
// to x.
func (m *Model) Gradient(task domain.Task, x []float64) (float64, []float64, error) {
	head, err := m.layers(task)
	if err != nil {
		return 0, nil, err
	}
	if err := m.checkInput(x); err != nil {
		return 0, nil, err
	}

	stack := make([]*dense, 0, len(m.backbone)+len(head))
	for i := range m.backbone {
		stack = append(stack, &m.backbone[i])
	}
	for i := range head {
		stack = append(stack, &head[i])
	}
	last := len(stack) - 1

	// pre-activations of every layer
	pre := make([]*mat.VecDense, len(stack))
	a := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for i, l := range stack {
		pre[i] = l.apply(a)
		a = pre[i]
		if i < last {
			a = relu(mat.VecDenseCopyOf(a))
		}
	}
	logit := pre[last].AtVec(0)

	grad := mat.NewVecDense(1, []float64{1})
	for i := last; i >= 0; i-- {
		if i < last {
			for j := 0; j < grad.Len(); j++ {
				if pre[i].AtVec(j) <= 0 {
					grad.SetVec(j, 0)
				}
			}
		}
		grad = stack[i].backward(grad)
	}
	return logit, grad.RawVector().Data, nil
}

func (l *dense) apply(x *mat.VecDense) *mat.VecDense {
	rows, _ := l.w.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(l.w, x)
	out.AddVec(out, l.b)
	return out
}

// backward maps a gradient on the layer output to its input.
func (l *dense) backward(g *mat.VecDense) *mat.VecDense {
	_, cols := l.w.Dims()
	out := mat.NewVecDense(cols, nil)
	out.MulVec(l.w.T(), g)
	return out
}

func relu(v *mat.VecDense) *mat.VecDense {
	for i := 0; i < v.Len(); i++ {
		if v.AtVec(i) < 0 {
			v.SetVec(i, 0)
		}
	}
	return v
}

// Sigmoid maps a logit to a probability.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
