// cmd/api/main.go
package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
)

func main() {
	catalogServiceURL, _ := url.Parse(getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"))
	exchangeServiceURL, _ := url.Parse(getEnv("EXCHANGE_SERVICE_URL", "http://localhost:8082"))
	profileServiceURL, _ := url.Parse(getEnv("PROFILE_SERVICE_URL", "http://localhost:8083"))
	messagingServiceURL, _ := url.Parse(getEnv("MESSAGING_SERVICE_URL", "http://localhost:8084"))

	catalogProxy := httputil.NewSingleHostReverseProxy(catalogServiceURL)
	exchangeProxy := httputil.NewSingleHostReverseProxy(exchangeServiceURL)
	profileProxy := httputil.NewSingleHostReverseProxy(profileServiceURL)
	messagingProxy := httputil.NewSingleHostReverseProxy(messagingServiceURL)

	// SSE responses must not be buffered on the way through.
	messagingProxy.FlushInterval = -1

	http.Handle("/api/v1/books", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/books/", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/search", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/interests", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/interests/", http.StripPrefix("/api/v1", catalogProxy))
	http.Handle("/api/v1/matches", http.StripPrefix("/api/v1", exchangeProxy))
	http.Handle("/api/v1/matches/", http.StripPrefix("/api/v1", exchangeProxy))
	http.Handle("/api/v1/notifications", http.StripPrefix("/api/v1", exchangeProxy))
	http.Handle("/api/v1/notifications/", http.StripPrefix("/api/v1", exchangeProxy))
	http.Handle("/api/v1/register", http.StripPrefix("/api/v1", profileProxy))
	http.Handle("/api/v1/login", http.StripPrefix("/api/v1", profileProxy))
	http.Handle("/api/v1/profiles/", http.StripPrefix("/api/v1", profileProxy))
	http.Handle("/api/v1/messages", http.StripPrefix("/api/v1", messagingProxy))
	http.Handle("/api/v1/messages/", http.StripPrefix("/api/v1", messagingProxy))
	http.Handle("/api/v1/events", http.StripPrefix("/api/v1", messagingProxy))
	http.Handle("/api/v1/events/", http.StripPrefix("/api/v1", messagingProxy))

	port := getEnv("PORT", "8080")
	log.Printf("API Gateway listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
