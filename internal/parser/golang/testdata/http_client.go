package peopleclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

func getPerson(id string) (*http.Response, error) {
	return http.Get("/people/" + id)
}

func addPerson(body string) (*http.Response, error) {
	return http.Post("/people", "application/json", strings.NewReader(body))
}

func ping() {
	http.Head("/healthz")
}

// Form posts are not tracked as requests.
func signIn(name string) {
	http.PostForm("/sessions", url.Values{"name": {name}})
}

func renamePerson(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, "PUT", "/people/42", nil)
	if err != nil {
		return err
	}
	_, err = http.DefaultClient.Do(req)
	return err
}

func listOrders(c *http.Client) {
	c.Get("/orders")
}

func archiveOrder() {
	c := http.Client{}
	c.Post("/orders/archive", "application/json", nil)
}
