package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"deal-catalog-service/internal/infrastructure/oauth"
	"deal-catalog-service/pkg/logger"
)

// Prints a refresh token for GCS_REFRESH_TOKEN.
func main() {
	log := logger.NewLogger("get-token", "info")

	o := oauth.NewGoogleOAuth(
		os.Getenv("GCS_CLIENT_ID"),
		os.Getenv("GCS_CLIENT_SECRET"),
		"",
		oauth.StorageScopes,
		log,
	)
	o.Config().RedirectURL = "http://localhost:8090/oauth2callback"

	state := "random-state"

	http.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		token, err := o.ExchangeCode(context.Background(), r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		fmt.Printf("\nRefresh Token: %s\n\n", token.RefreshToken)
		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		os.Exit(0)
	})

	fmt.Printf("Open this URL in your browser:\n%s\n", o.GenerateAuthURL(state))

	log.Fatal("OAuth callback server stopped", "error", http.ListenAndServe(":8090", nil))
}
