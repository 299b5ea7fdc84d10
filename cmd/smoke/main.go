package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

var baseURL string

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Pretty print JSON helper
func prettyPrint(raw []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(out.String())
}

// Request helper
func sendRequest(method, url, token string, body interface{}) (*http.Response, envelope, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	var env envelope
	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, env, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	// Summaries and chat turns wait on the LLM.
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, env, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, env, err
	}
	_ = json.Unmarshal(respBody, &env)
	return resp, env, nil
}

func step(method, url, token string, body interface{}) (envelope, bool) {
	resp, env, err := sendRequest(method, url, token, body)
	if err != nil {
		color.Red("Failed: %v", err)
		return env, false
	}
	if resp.StatusCode >= 300 {
		color.Red("Status: %s (%s)", resp.Status, env.Message)
		return env, false
	}
	color.Green("Status: %s", resp.Status)
	return env, true
}

func mintToken(secret, userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Walks one study session through the API: create, wait for ingestion, chat, generate study
// material, then delete.
func main() {
	_ = godotenv.Load()

	flag.StringVar(&baseURL, "url", "http://localhost:3000/api", "API base URL")
	source := flag.String("source", "", "document path or URL to ingest")
	user := flag.String("user", "smoke-test-user", "user id placed in the token")
	query := flag.String("query", "What are the key topics of this document?", "chat question")
	flag.Parse()

	if *source == "" {
		color.Red("-source is required")
		os.Exit(2)
	}

	token, err := mintToken(os.Getenv("JWT_SECRET"), *user)
	if err != nil {
		color.Red("Failed to sign token: %v", err)
		os.Exit(1)
	}

	color.Cyan("Starting study session API walkthrough\n")

	color.Yellow("\n1. Create study session")
	env, ok := step("POST", "/study-session/v1", token, map[string]string{
		"name":   "smoke test",
		"source": *source,
	})
	if !ok {
		os.Exit(1)
	}
	var session struct {
		Id string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &session)
	fmt.Printf("Session ID: %s\n", session.Id)

	color.Yellow("\n2. Wait for embeddings")
	ready := false
	for i := 0; i < 60 && !ready; i++ {
		env, ok = step("GET", "/study-session/v1/"+session.Id+"/embeddings", token, nil)
		if !ok {
			break
		}
		var status struct {
			HasEmbeddings bool `json:"has_embeddings"`
		}
		_ = json.Unmarshal(env.Data, &status)
		ready = status.HasEmbeddings
		if !ready {
			time.Sleep(2 * time.Second)
		}
	}
	if !ready {
		color.Red("Embeddings never became available, continuing with source fallback")
	}

	color.Yellow("\n3. Chat")
	if env, ok = step("POST", "/chat/v1/send", token, map[string]string{
		"document_session_id": session.Id,
		"query":               *query,
	}); ok {
		prettyPrint(env.Data)
	}

	color.Yellow("\n4. Summary")
	if env, ok = step("POST", "/study-tools/v1/"+session.Id+"/summary", token, nil); ok {
		prettyPrint(env.Data)
	}

	color.Yellow("\n5. Multiple choice questions")
	if env, ok = step("POST", "/study-tools/v1/"+session.Id+"/generate-q", token, nil); ok {
		var questions []json.RawMessage
		_ = json.Unmarshal(env.Data, &questions)
		fmt.Printf("Questions: %d\n", len(questions))
	}

	color.Yellow("\n6. Study cards")
	if env, ok = step("POST", "/study-tools/v1/"+session.Id+"/generate-c", token, nil); ok {
		var cards []json.RawMessage
		_ = json.Unmarshal(env.Data, &cards)
		fmt.Printf("Cards: %d\n", len(cards))
	}

	color.Yellow("\n7. Cleanup: delete study session")
	if env, ok = step("DELETE", "/study-session/v1/"+session.Id, token, nil); ok {
		prettyPrint(env.Data)
	}

	color.Cyan("\nWalkthrough complete")
}
