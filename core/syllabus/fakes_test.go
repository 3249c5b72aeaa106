package syllabus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

type step struct {
	text string
	err  error
	wait bool // block until ctx is done
}

func ok(text string) step { return step{text: text} }

func fail(status int, code, msg string) step {
	return step{err: &ProviderError{Provider: "fake", StatusCode: status, Code: code, Message: msg}}
}

type fakeCompleter struct {
	mu    sync.Mutex
	steps []step
	calls []time.Time
	reqs  []CompletionRequest
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, time.Now())
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if i >= len(f.steps) {
		return "", errors.New("unexpected call")
	}
	s := f.steps[i]
	if s.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompleter) callTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls...)
}

// fakeFileCompleter also stores files provider-side.
type fakeFileCompleter struct {
	fakeCompleter
	uploadErr  error
	deleteErr  error
	uploaded   []string
	deleted    []string
	deleteCtxs []error // ctx.Err() seen by DeleteFile
}

func (f *fakeFileCompleter) UploadFile(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	ref := fmt.Sprintf("file-%d", len(f.uploaded)+1)
	f.uploaded = append(f.uploaded, ref)
	return ref, nil
}

func (f *fakeFileCompleter) DeleteFile(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	f.deleteCtxs = append(f.deleteCtxs, ctx.Err())
	return f.deleteErr
}

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	created []task.Task
	failAt  map[int]error // by call index
}

func (s *fakeStore) Insert(ctx context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.failAt[i]; ok {
		return task.Task{}, err
	}
	t.ID = int64(len(s.created) + 1)
	s.created = append(s.created, t)
	return t, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []*core.EmailMessage
	panic bool
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	if m.panic {
		panic("smtp is down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func textUpload(name, content string) *Upload {
	return &Upload{Name: name, MediaType: "text/plain", Size: int64(len(content)), Content: strings.NewReader(content)}
}

// buildTestPDF returns a well-formed PDF with `pages` single-line text pages.
func buildTestPDF(pages int) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 page tree, 3 font, then a page and its content stream per page
	count := 3 + 2*pages
	offsets := make([]int, count+1)
	obj := func(n int, body string) {
		offsets[n] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	obj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i := 0; i < pages; i++ {
		page, content := 4+2*i, 5+2*i
		obj(page, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", content))
		stream := fmt.Sprintf("BT\n/F1 12 Tf\n72 720 Td\n(Week %d: Homework due) Tj\nET", i+1)
		obj(content, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", count+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", count+1, xref)
	return []byte(b.String())
}
