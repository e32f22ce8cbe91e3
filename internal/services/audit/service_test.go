package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vanguard/internal/domain"
	"vanguard/internal/ports"
	"vanguard/internal/services/report"
)

type mockJobs struct{ mock.Mock }

func (m *mockJobs) Create(ctx context.Context, target string, cost int, pdf string) (domain.Job, error) {
	args := m.Called(ctx, target, cost, pdf)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *mockJobs) Get(ctx context.Context, id int64) (domain.Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *mockJobs) MarkFixed(ctx context.Context, id int64, pdf string) (domain.Job, error) {
	args := m.Called(ctx, id, pdf)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *mockJobs) MarkLatestFixed(ctx context.Context, target, pdf string) (domain.Job, error) {
	args := m.Called(ctx, target, pdf)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *mockJobs) List(ctx context.Context) ([]domain.Job, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Job), args.Error(1)
}

// memJobs is a tiny in-memory job store with the postgres store's semantics.
type memJobs struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (m *memJobs) Create(_ context.Context, target string, cost int, pdf string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := domain.Job{ID: int64(len(m.jobs) + 1), Target: target, Cost: cost, Status: domain.JobPending, PDF: pdf}
	m.jobs = append(m.jobs, j)
	return j, nil
}

func (m *memJobs) Get(_ context.Context, id int64) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.jobs) {
		return domain.Job{}, ports.ErrNotFound
	}
	return m.jobs[id-1], nil
}

func (m *memJobs) MarkFixed(_ context.Context, id int64, pdf string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.jobs) {
		return domain.Job{}, ports.ErrNotFound
	}
	m.jobs[id-1].Status, m.jobs[id-1].PDF = domain.JobFixed, pdf
	return m.jobs[id-1], nil
}

func (m *memJobs) MarkLatestFixed(_ context.Context, target, pdf string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.jobs) - 1; i >= 0; i-- {
		if m.jobs[i].Target == target && m.jobs[i].Status == domain.JobPending {
			m.jobs[i].Status, m.jobs[i].PDF = domain.JobFixed, pdf
			return m.jobs[i], nil
		}
	}
	return domain.Job{}, ports.ErrNotFound
}

func (m *memJobs) List(context.Context) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Job, 0, len(m.jobs))
	for i := len(m.jobs) - 1; i >= 0; i-- {
		out = append(out, m.jobs[i])
	}
	return out, nil
}

type memReports struct {
	mu   sync.Mutex
	docs map[string][]byte
	err  error
}

func (r *memReports) Save(_ context.Context, name string, content []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.docs == nil {
		r.docs = make(map[string][]byte)
	}
	r.docs[name] = content
	return nil
}

func (r *memReports) Open(_ context.Context, name string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.docs[name]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type recordingBroadcast struct {
	mu     sync.Mutex
	events []ports.Event
}

func (b *recordingBroadcast) Publish(ev ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

type stubScanner struct{ f domain.Finding }

func (s stubScanner) Scan(_ context.Context, target string) domain.Finding {
	f := s.f
	f.Target = target
	return f
}

func stubService(jobs ports.JobRepository, reports ports.ReportStore, bc ports.Broadcaster) *Service {
	return New(Deps{
		Site: stubScanner{f: domain.Finding{
			Kind: domain.TargetWebsite, Issues: []string{issueClickjacking},
			Severity: domain.SeverityMedium, RemediationDays: 2, Cost: 500,
		}},
		Wallet: stubScanner{f: domain.Finding{
			Kind: domain.TargetWallet, Issues: []string{issueRPC},
			Severity: domain.SeverityCritical,
		}},
		Renderer:  report.New(),
		Reports:   reports,
		Jobs:      jobs,
		Broadcast: bc,
	})
}

func TestAuditRejectsBlankTarget(t *testing.T) {
	svc := stubService(&memJobs{}, &memReports{}, nil)

	_, err := svc.Audit(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.MalformedRequest))

	_, err = svc.Fix(context.Background(), "")
	assert.True(t, errors.Is(err, domain.MalformedRequest))
}

func TestAuditRoutesByClassification(t *testing.T) {
	jobs := &memJobs{}
	reports := &memReports{}
	bc := &recordingBroadcast{}
	svc := stubService(jobs, reports, bc)
	ctx := context.Background()

	site, err := svc.Audit(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.TargetWebsite, site.Finding.Kind)
	assert.Equal(t, 500, site.Job.Cost)

	wallet, err := svc.Audit(ctx, "0xabc123")
	require.NoError(t, err)
	assert.Equal(t, domain.TargetWallet, wallet.Finding.Kind)
	assert.Equal(t, 0, wallet.Job.Cost)

	assert.True(t, site.Persisted())
	assert.Contains(t, reports.docs, site.Document.Name)
	assert.Contains(t, reports.docs, wallet.Document.Name)
	require.Len(t, bc.events, 2)
	assert.Equal(t, "audit", bc.events[0].Type)
	assert.Equal(t, "MEDIUM", bc.events[0].Severity)
}

func TestAuditPersistenceFailureStillReturnsDocument(t *testing.T) {
	jobs := &mockJobs{}
	jobs.On("Create", mock.Anything, "example.com", 500, mock.AnythingOfType("string")).
		Return(domain.Job{}, errors.New("connection reset"))
	reports := &memReports{}
	svc := stubService(jobs, reports, nil)

	out, err := svc.Audit(context.Background(), "example.com")
	require.NoError(t, err)

	assert.False(t, out.Persisted())
	assert.True(t, errors.Is(out.PersistErr, domain.PersistenceFailure))
	assert.NotEmpty(t, out.Document.Content)
	assert.Equal(t, 500, out.Finding.Cost)
	assert.Contains(t, reports.docs, out.Document.Name)
	jobs.AssertExpectations(t)
}

func TestAuditReportStoreFailureIsReturned(t *testing.T) {
	jobs := &mockJobs{}
	svc := stubService(jobs, &memReports{err: errors.New("disk full")}, nil)

	_, err := svc.Audit(context.Background(), "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFixWithoutPendingJob(t *testing.T) {
	svc := stubService(&memJobs{}, &memReports{}, nil)

	out, err := svc.Fix(context.Background(), "example.com")
	require.NoError(t, err)

	assert.True(t, errors.Is(out.PersistErr, ports.ErrNotFound))
	assert.Contains(t, out.Document.Lines, "STATUS: REMEDIATION SUCCESSFUL")
}

func TestFixMarksOnlyLatestPendingJob(t *testing.T) {
	jobs := &memJobs{}
	svc := stubService(jobs, &memReports{}, nil)
	ctx := context.Background()

	first, err := svc.Audit(ctx, "example.com")
	require.NoError(t, err)
	second, err := svc.Audit(ctx, "example.com")
	require.NoError(t, err)

	fixed, err := svc.Fix(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, second.Job.ID, fixed.Job.ID)
	assert.Equal(t, domain.JobFixed, fixed.Job.Status)
	assert.Equal(t, fixed.Document.Name, fixed.Job.PDF)

	stillPending, err := jobs.Get(ctx, first.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, stillPending.Status)
}

func TestFixJob(t *testing.T) {
	jobs := &memJobs{}
	svc := stubService(jobs, &memReports{}, nil)
	ctx := context.Background()

	audited, err := svc.Audit(ctx, "0xabc123")
	require.NoError(t, err)

	out, err := svc.FixJob(ctx, audited.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFixed, out.Job.Status)
	assert.Equal(t, "0xabc123", out.Job.Target)

	_, err = svc.FixJob(ctx, audited.Job.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyFixed)

	_, err = svc.FixJob(ctx, 99)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestJobsMostRecentFirst(t *testing.T) {
	svc := stubService(&memJobs{}, &memReports{}, nil)
	ctx := context.Background()

	for _, target := range []string{"a.test", "b.test", "0xabc"} {
		_, err := svc.Audit(ctx, target)
		require.NoError(t, err)
	}

	jobs, err := svc.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "0xabc", jobs[0].Target)
	assert.Equal(t, "a.test", jobs[2].Target)
}

// redirectTransport sends every request to a local test server regardless of host.
type redirectTransport struct{ addr string }

func (t redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = t.addr
	return http.DefaultTransport.RoundTrip(req)
}

func TestAuditThenFixEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageWithMeta))
	}))
	defer srv.Close()
	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	opts := DefaultSiteOptions()
	opts.Rules.CSPSeverity = domain.SeverityMedium
	opts.LatencyThreshold = 5 * time.Second
	opts.Transport = redirectTransport{addr: net.JoinHostPort("127.0.0.1", port)}

	jobs := &memJobs{}
	svc := New(Deps{
		Site:     NewSiteScanner(opts),
		Wallet:   NewWalletScanner(fakeChain{}, DefaultWalletOptions()),
		Renderer: report.New(),
		Reports:  &memReports{},
		Jobs:     jobs,
	})
	ctx := context.Background()

	out, err := svc.Audit(ctx, "vulnerable-site.test")
	require.NoError(t, err)
	assert.Equal(t, "https://vulnerable-site.test", out.Finding.Target)
	assert.Equal(t, domain.SeverityMedium, out.Finding.Severity)
	assert.Len(t, out.Finding.Issues, 2)
	assert.Equal(t, 650, out.Finding.Cost)
	assert.Equal(t, 5, out.Finding.RemediationDays)
	assert.Equal(t, domain.JobPending, out.Job.Status)
	assert.Equal(t, "vulnerable-site.test", out.Job.Target)

	fixed, err := svc.Fix(ctx, "vulnerable-site.test")
	require.NoError(t, err)
	require.NoError(t, fixed.PersistErr)

	job, err := jobs.Get(ctx, out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFixed, job.Status)
	assert.Equal(t, fixed.Document.Name, job.PDF)
}
