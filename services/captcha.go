package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CaptchaSolver turns a reCAPTCHA site key into a response token.
type CaptchaSolver interface {
	Solve(siteKey, pageURL string) (string, error)
}

// TwoCaptchaSolver solves challenges through the 2Captcha HTTP API: one
// submit call, then bounded polling for the token.
type TwoCaptchaSolver struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	Client       *http.Client
}

func NewTwoCaptchaSolver(apiKey string) *TwoCaptchaSolver {
	return &TwoCaptchaSolver{
		APIKey:       apiKey,
		BaseURL:      "http://2captcha.com",
		PollInterval: 5 * time.Second,
		MaxPolls:     15,
		Client:       &http.Client{Timeout: 30 * time.Second},
	}
}

type twoCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func (s *TwoCaptchaSolver) Solve(siteKey, pageURL string) (string, error) {
	challengeID, err := s.submit(siteKey, pageURL)
	if err != nil {
		return "", err
	}

	for i := 0; i < s.MaxPolls; i++ {
		time.Sleep(s.PollInterval)
		token, ready, err := s.poll(challengeID)
		if err != nil {
			return "", err
		}
		if ready {
			return token, nil
		}
	}
	return "", fmt.Errorf("captcha %s not solved after %d polls", challengeID, s.MaxPolls)
}

func (s *TwoCaptchaSolver) submit(siteKey, pageURL string) (string, error) {
	form := url.Values{
		"key":       {s.APIKey},
		"method":    {"userrecaptcha"},
		"googlekey": {siteKey},
		"pageurl":   {pageURL},
		"json":      {"1"},
	}

	resp, err := s.Client.PostForm(s.BaseURL+"/in.php", form)
	if err != nil {
		return "", fmt.Errorf("captcha submit failed: %v", err)
	}
	defer resp.Body.Close()

	var parsed twoCaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("captcha submit response: %v", err)
	}
	if parsed.Status != 1 {
		return "", fmt.Errorf("captcha submit rejected: %s", parsed.Request)
	}
	return parsed.Request, nil
}

func (s *TwoCaptchaSolver) poll(challengeID string) (string, bool, error) {
	pollURL := fmt.Sprintf("%s/res.php?key=%s&action=get&id=%s&json=1", s.BaseURL, s.APIKey, challengeID)
	resp, err := s.Client.Get(pollURL)
	if err != nil {
		return "", false, fmt.Errorf("captcha poll failed: %v", err)
	}
	defer resp.Body.Close()

	var parsed twoCaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("captcha poll response: %v", err)
	}
	if parsed.Status == 1 {
		return parsed.Request, true, nil
	}
	return "", false, nil
}
