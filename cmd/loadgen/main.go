// Command loadgen drives the ingress API with concurrent create requests,
// mixing values on both sides of the default antifraud threshold.
package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	baseURL := "http://localhost:3000"
	if u := os.Getenv("TRANSACTION_SERVICE_URL"); u != "" {
		baseURL = u
	}

	totalRequests := 50
	start := time.Now()
	var wg sync.WaitGroup

	fmt.Printf("Sending %d create requests to %s...\n", totalRequests, baseURL)

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			// Half the values land above the default threshold of 1000.
			value := 100.0 + rand.Float64()*1800.0
			body := []byte(fmt.Sprintf(
				`{"accountExternalIdDebit": %q, "accountExternalIdCredit": %q, "transferTypeId": %d, "value": %.2f}`,
				uuid.New().String(), uuid.New().String(), 1+rand.Intn(3), value))

			resp, err := http.Post(baseURL+"/transactions", "application/json", bytes.NewBuffer(body))
			if err != nil {
				fmt.Printf("request %d failed: %v\n", id, err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				fmt.Printf("request %d: unexpected status %d\n", id, resp.StatusCode)
			}
		}(i)
	}

	wg.Wait()
	fmt.Printf("Finished %d requests in %v\n", totalRequests, time.Since(start))
}
