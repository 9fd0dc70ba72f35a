// Command smoketest exercises a running DrowsiSense server end to end:
// health, capability, session lifecycle, events, stats, and the WebSocket
// stream. Intended for manual verification after a deploy.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

var backendURL = "http://localhost:8081"

func testHealth() error {
	fmt.Println("\n[TEST] Testing /api/health...")
	resp, err := http.Get(backendURL + "/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Health check: %s\n", string(body))
	return nil
}

func testCapability() error {
	fmt.Println("\n[TEST] Testing /api/capability...")
	resp, err := http.Get(backendURL + "/api/capability")
	if err != nil {
		return fmt.Errorf("capability check failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Capability: %s\n", string(body))
	return nil
}

func testSession() (string, error) {
	fmt.Println("\n[TEST] Testing /api/sessions...")

	jsonData, _ := json.Marshal(map[string]string{"notes": "smoke test"})
	resp, err := http.Post(backendURL+"/api/sessions", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create session failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create session: status %d, body: %s", resp.StatusCode, string(body))
	}

	var session struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", err
	}
	fmt.Printf("Session created: %s (source=%s)\n", session.ID, session.Source)
	return session.ID, nil
}

func testEvents(sessionID string) error {
	fmt.Println("\n[TEST] Testing /api/events...")
	resp, err := http.Get(backendURL + "/api/events?session_id=" + sessionID + "&limit=5")
	if err != nil {
		return fmt.Errorf("events query failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Events: %s\n", string(body))
	return nil
}

func testStats(sessionID string) error {
	fmt.Println("\n[TEST] Testing /api/stats...")
	resp, err := http.Get(backendURL + "/api/stats?session_id=" + sessionID)
	if err != nil {
		return fmt.Errorf("stats query failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Stats: %s\n", string(body))
	return nil
}

func testWebSocket() error {
	fmt.Println("\n[TEST] Testing /ws stream...")

	wsURL := "ws" + backendURL[len("http"):] + "/ws?clientId=smoketest"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// Welcome message plus a few detection events.
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for i := 0; i < 4; i++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read failed: %v", err)
		}
		fmt.Printf("WS <- %s\n", string(msg))
	}
	return nil
}

func stopSession(sessionID string) error {
	fmt.Println("\n[TEST] Stopping session...")
	resp, err := http.Post(backendURL+"/api/sessions/"+sessionID+"/stop", "application/json", nil)
	if err != nil {
		return fmt.Errorf("stop session failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Stop session: %s\n", string(body))
	return nil
}

func main() {
	if url := os.Getenv("BACKEND_URL"); url != "" {
		backendURL = url
	}

	fmt.Println("DrowsiSense smoke test against", backendURL)

	if err := testHealth(); err != nil {
		log.Fatal(err)
	}
	if err := testCapability(); err != nil {
		log.Fatal(err)
	}

	sessionID, err := testSession()
	if err != nil {
		log.Fatal(err)
	}

	// Give the detection loop a moment to produce events.
	time.Sleep(3 * time.Second)

	if err := testEvents(sessionID); err != nil {
		log.Fatal(err)
	}
	if err := testStats(sessionID); err != nil {
		log.Fatal(err)
	}
	if err := testWebSocket(); err != nil {
		log.Fatal(err)
	}
	if err := stopSession(sessionID); err != nil {
		log.Fatal(err)
	}

	fmt.Println("\nAll smoke tests passed")
}
