//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	learnerID      = "e2e_learner"
	learnerName    = "E2E Learner"
	courseID       = "e2e-course"
	examID         = "e2e-exam"
)

var (
	baseURL      string
	dbURL        string
	learnerToken string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	cfg := config.Load()

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	dbURL = cfg.DatabaseURL

	if err := seedExam(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	// The server validates tokens with the same shared secret.
	token, err := service.NewIdentityService(cfg).MintToken(learnerID, learnerName)
	if err != nil {
		fmt.Printf("Token mint failed: %v\n", err)
		os.Exit(1)
	}
	learnerToken = token

	os.Exit(m.Run())
}

// seedExam installs a small live MCQ exam the flow can run against.
func seedExam() error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	// Cleanup previous test data (order matters due to FK).
	for _, stmt := range []string{
		"DELETE FROM exam_submissions WHERE exam_id = $1",
		"DELETE FROM questions WHERE exam_id = $1",
		"DELETE FROM exams WHERE id = $1",
	} {
		if _, err := conn.Exec(ctx, stmt, examID); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	if _, err := conn.Exec(ctx, "DELETE FROM courses WHERE id = $1", courseID); err != nil {
		return fmt.Errorf("cleanup course: %w", err)
	}

	if _, err := conn.Exec(ctx,
		`INSERT INTO courses (id, title, description, instructor, price)
		 VALUES ($1, 'E2E Course', 'Course used by the e2e flow', 'E2E Bot', 0)`,
		courseID,
	); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}

	now := time.Now().UTC()
	if _, err := conn.Exec(ctx,
		`INSERT INTO exams (id, course_id, title, kind, duration_minutes, live_window_start, live_window_end)
		 VALUES ($1, $2, 'E2E Exam', 'mcq', 30, $3, $4)`,
		examID, courseID, now.Add(-time.Hour), now.Add(time.Hour),
	); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	questions := []struct {
		id, text, answer string
	}{
		{"q1", "Two plus two?", "4"},
		{"q2", "Capital of France?", "Paris"},
	}
	for i, q := range questions {
		if _, err := conn.Exec(ctx,
			`INSERT INTO questions (id, exam_id, text, options, answer, position)
			 VALUES ($1, $2, $3, '[]', $4, $5)`,
			q.id, examID, q.text, q.answer, i,
		); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}

	return nil
}

func TestExamFlow(t *testing.T) {
	// Step 1: List courses (public).
	t.Run("ListCourses", func(t *testing.T) {
		resp, err := get("/courses", "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Step 2: Begin a session.
	t.Run("BeginSession", func(t *testing.T) {
		resp, err := post("/exams/"+examID+"/session", nil, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Session struct {
					Phase            string `json:"phase"`
					RemainingSeconds *int   `json:"remaining_seconds"`
				} `json:"session"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Session.Phase != "RUNNING" {
			t.Fatalf("phase %q, want RUNNING", body.Data.Session.Phase)
		}
		if body.Data.Session.RemainingSeconds == nil {
			t.Fatal("remaining_seconds missing on timed exam")
		}
	})

	// Step 3: Fetch the paper — must not contain answer keys.
	t.Run("GetPaper", func(t *testing.T) {
		resp, err := get("/exams/"+examID+"/paper", learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		raw := readBody(resp)
		if bytes.Contains([]byte(raw), []byte("Paris")) {
			t.Fatal("answer key leaked into the paper")
		}
	})

	// Step 4: Record one right and one wrong answer.
	t.Run("RecordAnswers", func(t *testing.T) {
		for q, a := range map[string]string{"q1": "4", "q2": "London"} {
			resp, err := put("/exams/"+examID+"/answers", map[string]string{
				"question_id": q,
				"answer":      a,
			}, learnerToken)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status %d", resp.StatusCode)
			}
		}
	})

	// Step 5: Submit and verify the score.
	t.Run("Submit", func(t *testing.T) {
		resp, err := post("/exams/"+examID+"/submit", nil, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Submission struct {
					Score         int  `json:"score"`
					OnLeaderboard bool `json:"onLeaderboard"`
				} `json:"submission"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Submission.Score != 50 {
			t.Fatalf("score %d, want 50", body.Data.Submission.Score)
		}
		if !body.Data.Submission.OnLeaderboard {
			t.Fatal("submission inside the live window should be on the leaderboard")
		}
	})

	// Step 6: The leaderboard picks up the submission.
	t.Run("Leaderboard", func(t *testing.T) {
		deadline := time.Now().Add(10 * time.Second)
		for {
			resp, err := get("/exams/"+examID+"/leaderboard", "")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}

			var body struct {
				Data struct {
					Leaderboard []struct {
						Rank  int    `json:"rank"`
						Name  string `json:"name"`
						Score int    `json:"score"`
					} `json:"leaderboard"`
				} `json:"data"`
			}
			decodeJSON(t, resp, &body)
			resp.Body.Close()

			for _, entry := range body.Data.Leaderboard {
				if entry.Name == learnerName && entry.Score == 50 {
					return
				}
			}
			if time.Now().After(deadline) {
				t.Fatalf("submission never appeared on the leaderboard: %+v", body.Data.Leaderboard)
			}
			time.Sleep(500 * time.Millisecond)
		}
	})
}

func post(path string, body interface{}, token string) (*http.Response, error) {
	return request("POST", path, body, token)
}

func put(path string, body interface{}, token string) (*http.Response, error) {
	return request("PUT", path, body, token)
}

func request(method, path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
