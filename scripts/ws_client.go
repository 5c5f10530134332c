// Package main runs a demo WebSocket client for planner events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	tenant := "t_demo"
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", tenant)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// Plan a small cohort around Dubai; one stop has no coordinates.
	stops := []map[string]any{
		{"id": "s1", "lat": 25.2048, "lng": 55.2708, "weight": 3},
		{"id": "s2", "lat": 25.1972, "lng": 55.2744, "weight": 2},
		{"id": "s3", "lat": 25.0805, "lng": 55.1403},
		{"id": "s4", "lat": 25.0770, "lng": 55.1330, "volume": 4},
		{"id": "s5"},
	}
	body, _ := json.Marshal(map[string]any{"stops": stops, "vehicle": map[string]any{"maxWeight": 100}})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/zones/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", tenant)
	req.Header.Set("X-Role", "dispatcher")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	log.Printf("zones/optimize status=%d", resp.StatusCode)

	_ = c.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var evt event
		if err := c.ReadJSON(&evt); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("event type=%s data=%v", evt.Type, evt.Data)
	}
}
