package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/remote"
	"github.com/Hossein925/f-maharat/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flakyGateway fails the next n upserts to a table.
type flakyGateway struct {
	*remote.MemoryGateway
	mu   sync.Mutex
	fail map[string]int
}

func newFlaky() *flakyGateway {
	return &flakyGateway{MemoryGateway: remote.NewMemoryGateway(), fail: map[string]int{}}
}

func (f *flakyGateway) failNext(table string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[table] = n
}

func (f *flakyGateway) Upsert(ctx context.Context, table string, rec remote.Record) error {
	f.mu.Lock()
	if f.fail[table] > 0 {
		f.fail[table]--
		f.mu.Unlock()
		return errors.New("network unreachable")
	}
	f.mu.Unlock()
	return f.MemoryGateway.Upsert(ctx, table, rec)
}

type recordingPublisher struct {
	mu     sync.Mutex
	tables []string
}

func (p *recordingPublisher) Publish(_ context.Context, table string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables = append(p.tables, table)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func rowByID(t *testing.T, gw remote.Gateway, table, id string) remote.Record {
	rows, err := gw.SelectAll(context.Background(), table)
	require.NoError(t, err)
	for _, r := range rows {
		if r["id"] == id {
			return r
		}
	}
	return nil
}

func TestUpsertDepartment_StripsChildrenAndInjectsParent(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemoryGateway()
	g := NewGateway(mem, zap.NewNop())

	d := &domain.Department{
		ID:                        "D1",
		Name:                      "ICU",
		HospitalID:                "stale",
		PatientEducationMaterials: []domain.TrainingMaterial{{ID: "M1", Name: "diabetes leaflet"}},
		Staff:                     []domain.StaffMember{{ID: "S1"}},
		Patients:                  []domain.Patient{{ID: "P1"}},
	}
	require.NoError(t, g.UpsertDepartment(ctx, d, "H1"))

	row := rowByID(t, mem, "departments", "D1")
	require.NotNil(t, row)
	assert.Equal(t, "H1", row["hospital_id"])
	assert.Equal(t, "ICU", row["name"])
	assert.NotContains(t, row, "staff")
	assert.NotContains(t, row, "patients")
	assert.NotContains(t, row, "hospitalId")
	materials := row["patient_education_materials"].([]any)
	assert.Equal(t, "diabetes leaflet", materials[0].(map[string]any)["name"])
	assert.Equal(t, 0, mem.Len("staff"))
}

func TestUpsert_SynthesizesID(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemoryGateway()
	g := NewGateway(mem, zap.NewNop(), WithIDGenerator(sequentialIDs()))

	s := &domain.StaffMember{Name: "Sara"}
	require.NoError(t, g.UpsertStaff(ctx, s, "D1"))
	assert.Equal(t, "gen-1", s.ID)
	assert.NotNil(t, rowByID(t, mem, "staff", "gen-1"))

	id, err := g.Upsert(ctx, schema.KindPatient, map[string]any{"name": "Ali"}, "D1")
	require.NoError(t, err)
	assert.Equal(t, "gen-2", id)
}

func TestUpsert_DefaultIDsAreUUIDs(t *testing.T) {
	g := NewGateway(remote.NewMemoryGateway(), nil)
	h := &domain.Hospital{Name: "Sina"}
	require.NoError(t, g.UpsertHospital(context.Background(), h))
	assert.Len(t, h.ID, 36)
}

func TestUpsert_RequiresParent(t *testing.T) {
	g := NewGateway(remote.NewMemoryGateway(), zap.NewNop())

	err := g.UpsertAssessment(context.Background(), &domain.Assessment{Month: "فروردین"}, "")
	assert.ErrorIs(t, err, ErrParentRequired)

	_, err = g.Upsert(context.Background(), "ward", map[string]any{}, "")
	assert.Error(t, err)
}

func TestUpsert_FailureIsLoggedAndReturned(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	flaky := newFlaky()
	flaky.failNext("news_banners", 1)
	g := NewGateway(flaky, zap.New(core))

	err := g.UpsertNewsBanner(context.Background(), &domain.NewsBanner{ID: "B1", Title: "Flu shots"}, "H1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network unreachable")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "news_banners", logs.All()[0].ContextMap()["table"])
}

func TestUpsert_PublishesChange(t *testing.T) {
	pub := &recordingPublisher{}
	g := NewGateway(remote.NewMemoryGateway(), zap.NewNop(), WithPublisher(pub))

	require.NoError(t, g.UpsertWorkLog(context.Background(), &domain.MonthlyWorkLog{ID: "W1", Month: "مهر"}, "S1"))
	require.NoError(t, g.DeleteWorkLog(context.Background(), "W1"))
	assert.Equal(t, []string{"work_logs", "work_logs"}, pub.tables)
}

func seedScenario(t *testing.T, g *Gateway) {
	ctx := context.Background()
	require.NoError(t, g.UpsertHospital(ctx, &domain.Hospital{ID: "H1", Name: "Sina"}))
	require.NoError(t, g.UpsertDepartment(ctx, &domain.Department{ID: "D1", Name: "ICU"}, "H1"))
	require.NoError(t, g.UpsertDepartment(ctx, &domain.Department{ID: "D2", Name: "ER"}, "H1"))
	require.NoError(t, g.UpsertStaff(ctx, &domain.StaffMember{ID: "S1", Name: "Sara"}, "D1"))
	require.NoError(t, g.UpsertStaff(ctx, &domain.StaffMember{ID: "S2", Name: "Reza"}, "D2"))
	require.NoError(t, g.UpsertAssessment(ctx, &domain.Assessment{ID: "A1", Month: "فروردین", Year: 1403}, "S1"))
	require.NoError(t, g.UpsertWorkLog(ctx, &domain.MonthlyWorkLog{ID: "W1", Month: "فروردین", Year: 1403}, "S1"))
	require.NoError(t, g.UpsertPatient(ctx, &domain.Patient{ID: "P1", Name: "Ali"}, "D1"))
}

func TestDelete_CascadesChildrenFirst(t *testing.T) {
	mem := remote.NewMemoryGateway()
	g := NewGateway(mem, zap.NewNop())
	seedScenario(t, g)

	require.NoError(t, g.DeleteDepartment(context.Background(), "D1"))

	assert.Nil(t, rowByID(t, mem, "departments", "D1"))
	assert.Nil(t, rowByID(t, mem, "staff", "S1"))
	assert.Nil(t, rowByID(t, mem, "assessments", "A1"))
	assert.Nil(t, rowByID(t, mem, "work_logs", "W1"))
	assert.Nil(t, rowByID(t, mem, "patients", "P1"))
	assert.NotNil(t, rowByID(t, mem, "departments", "D2"))
	assert.NotNil(t, rowByID(t, mem, "staff", "S2"))
}

func TestDelete_WithoutCascade(t *testing.T) {
	mem := remote.NewMemoryGateway()
	g := NewGateway(mem, zap.NewNop(), WithCascade(false))
	seedScenario(t, g)

	require.NoError(t, g.DeleteDepartment(context.Background(), "D1"))
	assert.Nil(t, rowByID(t, mem, "departments", "D1"))
	assert.NotNil(t, rowByID(t, mem, "staff", "S1"))
}

func TestDeleteHospital_RemovesWholeSubtree(t *testing.T) {
	mem := remote.NewMemoryGateway()
	g := NewGateway(mem, zap.NewNop())
	seedScenario(t, g)
	require.NoError(t, g.UpsertNeedsAssessment(context.Background(), &domain.MonthlyNeedsAssessment{ID: "N1"}, "H1"))

	require.NoError(t, g.DeleteHospital(context.Background(), "H1"))
	for _, table := range schema.Names() {
		assert.Equal(t, 0, mem.Len(table), table)
	}
}
