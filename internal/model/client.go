// Package model defines the core domain models used throughout the application.
package model

import "strings"

// Client is an entry in the customer directory.
type Client struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
}

// HasDomain reports whether the client has registered the given email domain.
// Comparison is case-insensitive.
func (c *Client) HasDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	for _, d := range c.Domains {
		if strings.ToLower(d) == domain {
			return true
		}
	}
	return false
}

// Product is an entry in the product catalog.
type Product struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
