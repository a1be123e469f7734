package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/patric-chuzhbe/newsdigest/internal/models"
)

func ExampleRouter_GetRoot() {
	server, _ := setupTestRouter(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var body models.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Message:", body.Message)

	// Output:
	// Status Code: 200
	// Message: News Automation API
}

func ExampleRouter_PostApiprocess() {
	server, _ := setupTestRouter(nil)
	defer server.Close()

	send := func(message, confirmURL string) models.ProcessResponse {
		payload, err := json.Marshal(models.ProcessRequest{
			Email:      "reader@example.com",
			Message:    message,
			ConfirmURL: confirmURL,
		})
		if err != nil {
			panic(err)
		}

		resp, err := http.Post(server.URL+"/api/process", "application/json", bytes.NewReader(payload))
		if err != nil {
			panic(err)
		}
		defer resp.Body.Close()

		var body models.ProcessResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			panic(err)
		}
		return body
	}

	fmt.Println(send("hi", "").Response)

	proposal := send("add https://go.dev/blog", "")
	fmt.Println(proposal.Response)

	fmt.Println(send("yes", proposal.ConfirmURL).Response)

	// Output:
	// Welcome! You're now subscribed to the daily digest at 08:00 (America/Los_Angeles). What would you like to do? (add source/remove source/change time/view sources)
	// Did you mean https://go.dev/blog? Reply "yes" to add it.
	// Added Go to your sources. Add another one, or say "done" when you're finished.
}

func ExampleRouter_GetApicronsenddigests() {
	server, notifier := setupTestRouter(nil)
	defer server.Close()

	payload := []byte(`{"email":"reader@example.com","message":"hi"}`)
	created, err := http.Post(server.URL+"/api/process", "application/json", bytes.NewReader(payload))
	if err != nil {
		panic(err)
	}
	created.Body.Close()

	resp, err := http.Get(server.URL + "/api/cron/send-digests")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var body models.CronResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println(body.Message)
	fmt.Println(notifier.subjects[0])

	// Output:
	// Status Code: 200
	// Cron job completed. Sent 1 digests.
	// Your Daily News Digest - March 3, 2025
}
