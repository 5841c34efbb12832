package question

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/auth/jwt"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
)

type stubAccess struct {
	granted map[entitlement.Product]bool
	err     error
}

func (s stubAccess) CheckAccess(_ context.Context, _ uuid.UUID, product entitlement.Product) (bool, error) {
	return s.granted[product], s.err
}

func newTestMux(t *testing.T, access AccessChecker) *http.ServeMux {
	t.Helper()
	sel, _ := newTestSelector(t, 21)
	h := NewHTTPHandler(sel, sel.topics, access, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/questions", h.HandleQuestions)
	mux.HandleFunc("/api/topic-exams", h.HandleTopicExams)
	mux.HandleFunc("/api/topic-exams/{slug}", h.HandleTopicExam)
	mux.HandleFunc("/api/quiz/grade", h.HandleGrade)
	return mux
}

func withUser(req *http.Request) *http.Request {
	claims := &jwt.Claims{UserID: uuid.New(), Email: "user@example.com"}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

func TestHandleQuestionsPractice(t *testing.T) {
	mux := newTestMux(t, stubAccess{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/questions?mode=practice&count=8", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ModePractice, body.Mode)
	assert.Len(t, body.Questions, 8)
	assert.Equal(t, PracticeRetryLimit, body.PracticeRetryLimit)
	assert.Equal(t, PassMark(8), body.PassMark)
}

func TestHandleQuestionsRejectsUnknownMode(t *testing.T) {
	mux := newTestMux(t, nil)

	for _, path := range []string{"/api/questions?mode=marathon", "/api/questions", "/api/questions?mode=topic"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/questions?mode=practice&count=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQuestionsGatesPaidModes(t *testing.T) {
	mux := newTestMux(t, stubAccess{granted: map[entitlement.Product]bool{entitlement.ProductExam: true}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/questions?mode=exam", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/questions?mode=exam", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Questions, ExamQuestionCount)
	assert.Zero(t, body.PracticeRetryLimit)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/questions?mode=scenario", nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_required")
}

func TestHandleQuestionsAccessCheckFailure(t *testing.T) {
	mux := newTestMux(t, stubAccess{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/questions?mode=exam", nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleTopicExams(t *testing.T) {
	mux := newTestMux(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topic-exams", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		TopicExams []TopicExam `json:"topicExams"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.NotEmpty(t, list.TopicExams)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topic-exams/"+list.TopicExams[0].Slug, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Topic)
	assert.Equal(t, list.TopicExams[0].Slug, body.Topic.Slug)
	assert.Len(t, body.Questions, DefaultTopicQuestionCount)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topic-exams/unknown-slug", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGrade(t *testing.T) {
	mux := newTestMux(t, nil)

	payload, err := json.Marshal(gradeRequest{
		Questions: []Question{
			{ID: "a", Topic: "regulation", Answer: "A"},
			{ID: "b", Topic: "regulation", Answer: "B"},
		},
		Answers: map[string]string{"a": "A", "b": "B"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quiz/grade", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 2, res.Score)
	assert.True(t, res.Passed)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quiz/grade", bytes.NewReader([]byte(`{"questions":[]}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
