package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// Generates the same month repeatedly against a running API and verifies
// the previews are byte-identical once volatile fields are stripped. The
// engine promises identical output for identical input; this catches any
// accidental map-iteration or time dependence before it reaches users.

type runResult struct {
	Run      int
	Status   int
	Body     []byte
	Duration time.Duration
	Error    error
}

func main() {
	var (
		base    string
		token   string
		year    int
		month   int
		runs    int
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token with schedule generation rights")
	flag.IntVar(&year, "year", time.Now().Year(), "Schedule year")
	flag.IntVar(&month, "month", int(time.Now().Month()), "Schedule month")
	flag.IntVar(&runs, "runs", 5, "Number of generation runs to compare")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	if runs < 2 {
		log.Fatalf("need at least 2 runs to compare, got %d", runs)
	}

	client := &http.Client{Timeout: timeout}

	var results []runResult
	for i := 1; i <= runs; i++ {
		results = append(results, generateOnce(client, base, token, year, month, i))
	}

	mismatches := printReport(results)

	fmt.Printf("Runs: %d, Mismatches: %d\n", runs, mismatches)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func generateOnce(client *http.Client, base, token string, year, month, run int) runResult {
	res := runResult{Run: run}

	payload, err := json.Marshal(map[string]int{"year": year, "month": month})
	if err != nil {
		res.Error = err
		return res
	}

	url := strings.TrimRight(base, "/") + "/api/v1/schedules/generate"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
		return res
	}
	if resp.StatusCode != http.StatusOK {
		res.Error = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return res
	}

	canonical, err := canonicalPreview(body)
	if err != nil {
		res.Error = err
		return res
	}
	res.Body = canonical
	return res
}

// canonicalPreview extracts the preview from the response envelope, strips
// fields that legitimately differ between runs (proposal id, timing meta)
// and re-marshals with sorted keys.
func canonicalPreview(raw []byte) ([]byte, error) {
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("response has no data field")
	}

	delete(envelope.Data, "proposalId")

	var v interface{} = envelope.Data
	normalize(&v)
	return json.Marshal(v)
}

func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []runResult) int {
	fmt.Println("Determinism Check Report")
	fmt.Println("========================")

	var reference []byte
	for _, res := range results {
		if res.Error == nil {
			reference = res.Body
			break
		}
	}

	mismatches := 0
	for _, res := range results {
		status := "OK"
		switch {
		case res.Error != nil:
			status = "ERROR"
			mismatches++
		case !bytes.Equal(res.Body, reference):
			status = "DIFF"
			mismatches++
		}
		fmt.Printf("[%s] run %d\n", status, res.Run)
		fmt.Printf("  Status: %d (%s)\n", res.Status, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		}
	}
	return mismatches
}
