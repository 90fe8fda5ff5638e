//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/stemsi/scorecast/internal/model"
)

const (
	defaultBaseURL = "http://localhost:5000"
	e2eRequestID   = "e2e-predict-0001"
)

var (
	baseURL    string
	dbURL      string
	adminPass  string
	adminToken string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// Set DATABASE_URL together with PREDICTION_LOG_ENABLED=true on the server
	// to verify persistence.
	if os.Getenv("PREDICTION_LOG_ENABLED") == "true" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	adminPass = os.Getenv("E2E_ADMIN_PASSWORD")

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Readiness
	t.Run("Ready", func(t *testing.T) {
		resp, err := get("/", "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		if body := readBody(resp); body != "Prediction service is ready." {
			t.Fatalf("unexpected body %q", body)
		}
	})

	// Step 2: Predict
	t.Run("Predict", func(t *testing.T) {
		reqBody := map[string]interface{}{
			"Gender":                     "Male",
			"Study_Hours_per_Week":       10,
			"Attendance_Rate":            85.5,
			"Past_Exam_Scores":           78,
			"Parental_Education_Level":   "Bachelors",
			"Internet_Access_at_Home":    "Yes",
			"Extracurricular_Activities": "No",
		}
		resp, err := post("/predict", reqBody, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body model.PredictResponse
		decodeJSON(t, resp, &body)
		if body.PassFail != "Pass" && body.PassFail != "Fail" {
			t.Errorf("unexpected label %q", body.PassFail)
		}
		t.Logf("Predicted %.2f / %s", body.FinalExamScore, body.PassFail)
	})

	// Step 3: Unknown category is rejected
	t.Run("PredictUnknownCategory", func(t *testing.T) {
		reqBody := map[string]interface{}{
			"Gender":                     "Other",
			"Study_Hours_per_Week":       10,
			"Attendance_Rate":            85.5,
			"Past_Exam_Scores":           78,
			"Parental_Education_Level":   "Bachelors",
			"Internet_Access_at_Home":    "Yes",
			"Extracurricular_Activities": "No",
		}
		resp, err := post("/predict", reqBody, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d. Body: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Code string `json:"code"`
		}
		decodeJSON(t, resp, &body)
		if body.Code != "UNKNOWN_CATEGORY" {
			t.Errorf("unexpected code %q", body.Code)
		}
	})

	// Step 4: Admin login
	t.Run("AdminLogin", func(t *testing.T) {
		if adminPass == "" {
			t.Skip("E2E_ADMIN_PASSWORD not set")
		}
		resp, err := post("/api/v1/admin/login", map[string]string{"password": adminPass}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data model.AdminLoginResponse `json:"data"`
		}
		decodeJSON(t, resp, &body)
		adminToken = body.Data.Token
		if adminToken == "" {
			t.Fatal("token missing")
		}
	})

	// Step 5: Model summary
	t.Run("ModelSummary", func(t *testing.T) {
		if adminToken == "" {
			t.Skip("no admin token")
		}
		resp, err := get("/api/v1/admin/model", adminToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data model.TrainingSummary `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Rows == 0 || len(body.Data.Features) != len(model.FeatureColumns) {
			t.Errorf("unexpected summary %+v", body.Data)
		}
	})

	// Step 6: Prediction log persisted
	t.Run("PredictionLogged", func(t *testing.T) {
		if dbURL == "" {
			t.Skip("prediction log not enabled")
		}
		reqBody := map[string]interface{}{
			"Gender":                     "Female",
			"Study_Hours_per_Week":       "12",
			"Attendance_Rate":            "91",
			"Past_Exam_Scores":           "80",
			"Parental_Education_Level":   "Masters",
			"Internet_Access_at_Home":    "Yes",
			"Extracurricular_Activities": "Yes",
		}
		req, _ := json.Marshal(reqBody)
		httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/predict", bytes.NewReader(req))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Request-ID", e2eRequestID)
		resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(httpReq)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		ctx := context.Background()
		conn, err := pgx.Connect(ctx, dbURL)
		if err != nil {
			t.Fatalf("db connect: %v", err)
		}
		defer conn.Close(ctx)

		// The worker flushes at least every batch timeout.
		deadline := time.Now().Add(10 * time.Second)
		for {
			var n int
			err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM prediction_logs WHERE request_id = $1`, e2eRequestID).Scan(&n)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if n > 0 {
				return
			}
			if time.Now().After(deadline) {
				t.Fatal("prediction was not persisted")
			}
			time.Sleep(500 * time.Millisecond)
		}
	})
}

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
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
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
