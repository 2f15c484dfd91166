package analytics

import (
	"bytes"
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 4, day, hour, 0, 0, 0, time.UTC)
}

func sample() []*models.Evaluation {
	return []*models.Evaluation{
		{ID: 1, JDID: 1, Score: 0, Verdict: models.VerdictLow, CreatedAt: at(2, 10)},
		{ID: 2, JDID: 1, Score: 25, Verdict: "LOW", CreatedAt: at(1, 23)},
		{ID: 3, JDID: 2, Score: 26, Verdict: models.VerdictMedium, CreatedAt: at(2, 0)},
		{ID: 4, JDID: 2, Score: 75, Verdict: "High", CreatedAt: at(3, 5)},
		{ID: 5, JDID: 2, Score: 76, Verdict: models.VerdictPending, CreatedAt: at(3, 6)},
		{ID: 6, JDID: 9, Score: 100, Verdict: "excellent", CreatedAt: at(1, 1)},
	}
}

func TestScoreDistribution(t *testing.T) {
	evs := sample()
	dist := ScoreDistribution(evs)
	assert.Equal(t, map[string]int{"0-25": 2, "26-50": 1, "51-75": 1, "76-100": 2}, dist)

	total := 0
	for _, n := range dist {
		total += n
	}
	assert.Equal(t, len(evs), total)

	assert.Empty(t, ScoreDistribution(nil))
}

func TestVerdictBreakdown(t *testing.T) {
	got := VerdictBreakdown(sample())
	// pending and unknown verdicts fall into low
	assert.Equal(t, map[string]int{"high": 1, "medium": 1, "low": 4}, got)
	assert.Empty(t, VerdictBreakdown([]*models.Evaluation{}))
}

func TestTimeline(t *testing.T) {
	got := Timeline(sample())
	assert.Equal(t, []DayCount{
		{Date: "2026-04-01", Count: 2},
		{Date: "2026-04-02", Count: 2},
		{Date: "2026-04-03", Count: 2},
	}, got)

	local := time.FixedZone("UTC+9", 9*3600)
	got = Timeline([]*models.Evaluation{{CreatedAt: time.Date(2026, 4, 2, 3, 0, 0, 0, local)}})
	assert.Equal(t, "2026-04-01", got[0].Date)

	assert.Empty(t, Timeline(nil))
}

func TestAvgScorePerJD(t *testing.T) {
	jds := map[int64]*models.JobDescription{
		1: {ID: 1, Title: "Backend Engineer", Filename: "a.txt"},
		2: {ID: 2, Filename: "ab12cd34_data.pdf"},
	}
	evs := sample()
	evs = append(evs, &models.Evaluation{ID: 7, JDID: 2, Score: 0})

	got := AvgScorePerJD(evs, jds)
	require.Len(t, got, 2)
	assert.Equal(t, JDAverage{JDID: 1, Title: "Backend Engineer", AvgScore: 12.5, Count: 2}, got[0])
	assert.Equal(t, int64(2), got[1].JDID)
	assert.Equal(t, "ab12cd34_data.pdf", got[1].Title)
	assert.Equal(t, 44.25, got[1].AvgScore)

	got = AvgScorePerJD([]*models.Evaluation{
		{JDID: 1, Score: 10}, {JDID: 1, Score: 10}, {JDID: 1, Score: 11},
	}, jds)
	assert.Equal(t, 10.33, got[0].AvgScore)
}

func TestParseFilter(t *testing.T) {
	q := url.Values{}
	q.Set("admin_id", "3")
	q.Set("start_date", "2026-04-01")
	q.Set("end_date", "2026-04-02")
	q.Set("min_score", "50")
	q.Set("verdict", " Med ")

	f, err := ParseFilter(q)
	require.NoError(t, err)
	assert.Equal(t, int64(3), *f.AdminID)
	assert.Nil(t, f.UserID)
	assert.Equal(t, at(1, 0), *f.Start)
	assert.Equal(t, time.Date(2026, 4, 2, 23, 59, 59, 999999999, time.UTC), *f.End)
	assert.Equal(t, 50, *f.MinScore)
	assert.Equal(t, "Med", f.Verdict)

	q = url.Values{}
	q.Set("start_date", "2026-04-01T10:00:00+02:00")
	f, err = ParseFilter(q)
	require.NoError(t, err)
	assert.Equal(t, at(1, 8), *f.Start)
}

func TestParseFilter_Invalid(t *testing.T) {
	tests := []struct {
		key, value, msg string
	}{
		{"admin_id", "abc", "invalid admin_id"},
		{"user_id", "0", "invalid user_id"},
		{"start_date", "yesterday", "invalid start_date"},
		{"end_date", "04/02/2026", "invalid end_date"},
		{"min_score", "high", "invalid min_score"},
		{"min_score", "101", "invalid min_score"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := ParseFilter(url.Values{tt.key: {tt.value}})
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
			assert.Equal(t, tt.msg, apperror.PublicMessage(err))
		})
	}

	_, err := ParseFilter(url.Values{"start_date": {"2026-04-03"}, "end_date": {"2026-04-01"}})
	assert.Equal(t, "end_date is before start_date", apperror.PublicMessage(err))
}

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewJSONStorage(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateResume(ctx, &models.Resume{UserID: 1, Filename: "a.txt"}))
	require.NoError(t, s.CreateResume(ctx, &models.Resume{UserID: 2, Filename: "b.txt"}))
	require.NoError(t, s.CreateJD(ctx, &models.JobDescription{AdminID: 10, Title: "Go Dev", Filename: "go.txt"}))
	require.NoError(t, s.CreateJD(ctx, &models.JobDescription{AdminID: 20, Filename: "rust.txt"}))
	for _, ev := range []*models.Evaluation{
		{ResumeID: 1, JDID: 1, Score: 80, Verdict: models.VerdictHigh, MissingSkills: []string{}, CreatedAt: at(1, 9)},
		{ResumeID: 2, JDID: 1, Score: 60, Verdict: models.VerdictMedium, MissingSkills: []string{"grpc"}, CreatedAt: at(2, 9)},
		{ResumeID: 1, JDID: 2, Score: 10, Verdict: models.VerdictLow, MissingSkills: []string{"rust", "tokio"}, CreatedAt: at(2, 11)},
	} {
		require.NoError(t, s.CreateEvaluation(ctx, ev))
	}
}

func TestService_Reports(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	svc := NewService(s, nil)
	ctx := context.Background()

	rep, err := svc.ScoreDistribution(ctx, Filter{AdminID: storage.Int64(10)})
	require.NoError(t, err)
	assert.False(t, rep.Empty)
	assert.Equal(t, "score distribution calculated", rep.Message)
	assert.Equal(t, map[string]int{"0-25": 0, "26-50": 0, "51-75": 1, "76-100": 1}, rep.Data)

	rep, err = svc.VerdictBreakdown(ctx, Filter{UserID: storage.Int64(1)})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"high": 1, "medium": 0, "low": 1}, rep.Data)

	rep, err = svc.Timeline(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []DayCount{{"2026-04-01", 1}, {"2026-04-02", 2}}, rep.Data)

	rep, err = svc.AvgScorePerJD(ctx, Filter{AdminID: storage.Int64(10)})
	require.NoError(t, err)
	assert.Equal(t, []JDAverage{{JDID: 1, Title: "Go Dev", AvgScore: 70, Count: 2}}, rep.Data)

	minScore := 70
	evs, err := svc.Evaluations(ctx, Filter{MinScore: &minScore})
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestService_EmptyReports(t *testing.T) {
	svc := NewService(newStore(t), nil)
	ctx := context.Background()

	for name, run := range map[string]func(context.Context, Filter) (*Report, error){
		"distribution": svc.ScoreDistribution,
		"verdicts":     svc.VerdictBreakdown,
		"timeline":     svc.Timeline,
		"per jd":       svc.AvgScorePerJD,
	} {
		t.Run(name, func(t *testing.T) {
			rep, err := run(ctx, Filter{AdminID: storage.Int64(1)})
			require.NoError(t, err)
			assert.True(t, rep.Empty)
			assert.Equal(t, NoEvaluations, rep.Message)
		})
	}
}

func TestExport(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	svc := NewService(s, nil)

	data, filename, err := svc.Export(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Contains(t, filename, ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetEvaluations, SheetDistribution, SheetVerdicts, SheetTimeline, SheetPerJD}, f.GetSheetList())

	rows, err := f.GetRows(SheetEvaluations)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "JD TITLE", rows[0][3])
	assert.Equal(t, "Go Dev", rows[1][3])
	assert.Equal(t, "rust, tokio", rows[3][6])

	rows, err = f.GetRows(SheetDistribution)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"SCORE RANGE", "COUNT"}, {"0-25", "1"}, {"26-50", "0"}, {"51-75", "1"}, {"76-100", "1"}}, rows)

	rows, err = f.GetRows(SheetPerJD)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "rust.txt", rows[2][1])
}

func TestExport_Empty(t *testing.T) {
	data, err := BuildWorkbook(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetEvaluations)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
