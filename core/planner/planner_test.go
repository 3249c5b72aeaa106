package planner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
	logsvc "github.com/trezcool/trackademic/services/logger"
)

type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (f *fakeCompleter) Name() string { return "openai" }

func (f *fakeCompleter) Complete(ctx context.Context, req syllabus.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	text := f.replies[0]
	f.replies = f.replies[1:]
	return text, nil
}

func newTestPlanner(t *testing.T, provider syllabus.Completer) *Planner {
	return NewPlanner(core.NewTestConfig(), provider, logsvc.NewTestLogger(t))
}

var essay = task.Task{
	ID:             7,
	Title:          "Final essay",
	Description:    "2000 words on distributed consensus",
	DueDate:        time.Date(2025, 4, 30, 23, 59, 59, 0, time.UTC),
	Type:           task.TypeProject,
	Priority:       task.PriorityHigh,
	EstimatedHours: 12,
}

func TestParseParts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "numbered", text: "1. Research\n2) Outline\n3. Write", want: []string{"Research", "Outline", "Write"}},
		{name: "bullets and blanks", text: "- Research\n\n* Outline\n• Write\n", want: []string{"Research", "Outline", "Write"}},
		{name: "fenced bold", text: "```\n**Research**\n\"Outline\"\n```", want: []string{"Research", "Outline"}},
		{name: "labels kept", text: "Part 1: Research\nPart 2: Write", want: []string{"Part 1: Research", "Part 2: Write"}},
		{name: "nothing", text: "  \n```", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseParts(tt.text))
		})
	}
}

func TestParseSlots(t *testing.T) {
	known := map[int64]bool{7: true, 8: true}
	text := strings.Join([]string{
		"Here is your schedule:",
		"[7], [Monday 6pm-8pm]",
		"1. 8, Tuesday 7pm",
		"- [9], Wednesday",
		"8,  ",
		"7, \"Saturday 10am\"",
	}, "\n")

	assert.Equal(t, []Slot{
		{TaskID: 7, Time: "Monday 6pm-8pm"},
		{TaskID: 8, Time: "Tuesday 7pm"},
		{TaskID: 7, Time: "Saturday 10am"},
	}, ParseSlots(text, known))
	assert.Empty(t, ParseSlots("no slots here", known))
}

func TestSplitPrompt(t *testing.T) {
	assert.Equal(t,
		"Split this task into 3 parts and just name each one simply and sequentially, with no descriptions: Final essay (2000 words on distributed consensus)",
		SplitPrompt(essay, 3))
}

func TestSchedulePrompt(t *testing.T) {
	prompt, err := SchedulePrompt([]task.Task{essay}, "Weekends")
	require.NoError(t, err)
	assert.Contains(t, prompt, `"id":7`)
	assert.Contains(t, prompt, `"due_date":"2025-04-30T23:59:59Z"`)
	assert.Contains(t, prompt, "into this schedule Weekends.")
	assert.Contains(t, prompt, `"[task_id], [time]"`)
}

func TestPlanner_Split(t *testing.T) {
	t.Run("trims extra parts", func(t *testing.T) {
		provider := &fakeCompleter{replies: []string{"1. Research\n2. Outline\n3. Draft\n4. Edit"}}
		parts, err := newTestPlanner(t, provider).Split(context.Background(), essay, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"Research", "Outline", "Draft"}, parts)
		assert.Equal(t, []string{SplitPrompt(essay, 3)}, provider.prompts)
	})

	t.Run("out of range", func(t *testing.T) {
		provider := new(fakeCompleter)
		_, err := newTestPlanner(t, provider).Split(context.Background(), essay, MaxParts+1)
		serr, ok := err.(*syllabus.Error)
		require.True(t, ok)
		assert.Equal(t, syllabus.KindInvalidInput, serr.Kind)
		assert.Empty(t, provider.prompts)
	})

	t.Run("unparseable", func(t *testing.T) {
		provider := &fakeCompleter{replies: []string{"```\n```"}}
		_, err := newTestPlanner(t, provider).Split(context.Background(), essay, 2)
		serr, ok := err.(*syllabus.Error)
		require.True(t, ok)
		assert.Equal(t, syllabus.KindParseFailed, serr.Kind)
		assert.Equal(t, "```\n```", serr.RawResponse)
	})

	t.Run("overloaded then answered", func(t *testing.T) {
		provider := &fakeCompleter{
			errs:    []error{&syllabus.ProviderError{Provider: "openai", StatusCode: 503, Message: "busy"}},
			replies: []string{"Research\nWrite"},
		}
		parts, err := newTestPlanner(t, provider).Split(context.Background(), essay, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"Research", "Write"}, parts)
		assert.Len(t, provider.prompts, 2)
	})

	t.Run("quota is not retried", func(t *testing.T) {
		provider := &fakeCompleter{errs: []error{&syllabus.ProviderError{Provider: "openai", StatusCode: 429, Message: "quota"}}}
		_, err := newTestPlanner(t, provider).Split(context.Background(), essay, 2)
		serr, ok := err.(*syllabus.Error)
		require.True(t, ok)
		assert.Equal(t, syllabus.KindRateLimited, serr.Kind)
		assert.Len(t, provider.prompts, 1)
	})
}

func TestPlanner_Schedule(t *testing.T) {
	t.Run("no tasks", func(t *testing.T) {
		provider := new(fakeCompleter)
		slots, err := newTestPlanner(t, provider).Schedule(context.Background(), nil, "Weekends")
		require.NoError(t, err)
		assert.Empty(t, slots)
		assert.Empty(t, provider.prompts)
	})

	t.Run("unknown ids only", func(t *testing.T) {
		provider := &fakeCompleter{replies: []string{"[99], Monday"}}
		_, err := newTestPlanner(t, provider).Schedule(context.Background(), []task.Task{essay}, "Weekends")
		serr, ok := err.(*syllabus.Error)
		require.True(t, ok)
		assert.Equal(t, syllabus.KindParseFailed, serr.Kind)
	})

	t.Run("scheduled", func(t *testing.T) {
		provider := &fakeCompleter{replies: []string{"[7], Saturday 10am\n[7], Sunday 10am"}}
		slots, err := newTestPlanner(t, provider).Schedule(context.Background(), []task.Task{essay}, "Weekends")
		require.NoError(t, err)
		assert.Equal(t, []Slot{{TaskID: 7, Time: "Saturday 10am"}, {TaskID: 7, Time: "Sunday 10am"}}, slots)
	})
}

func TestRequests_Validate(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	assert.NoError(t, (&SplitRequest{Parts: MinParts}).Validate(validate))
	assert.Error(t, (&SplitRequest{Parts: MaxParts + 1}).Validate(validate))

	req := &ScheduleRequest{Schedule: "  Weekends  "}
	assert.NoError(t, req.Validate(validate))
	assert.Equal(t, "Weekends", req.Schedule)
	assert.Error(t, (&ScheduleRequest{Schedule: " "}).Validate(validate))
}
