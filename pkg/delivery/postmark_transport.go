package delivery

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Postmark API error codes that mean the address itself is bad, as opposed
// to a transient service problem.
const (
	postmarkErrInvalidEmail      = 300
	postmarkErrInactiveRecipient = 406
)

type postmarkTransport struct {
	client *postmark.Client
	config Config
}

// NewPostmarkTransport creates a Postmark-backed delivery transport.
// Both tokens are required so a misconfigured service fails at startup
// rather than on the first due brief.
func NewPostmarkTransport(cfg Config) (Transport, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyToEmail != "" && !emailRegex.MatchString(cfg.ReplyToEmail) {
		return nil, fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkTransport{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkTransport creates a Postmark transport that panics on
// invalid config.
func MustNewPostmarkTransport(cfg Config) Transport {
	t, err := NewPostmarkTransport(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// Send delivers one brief through Postmark's transactional API. Addresses
// Postmark rejects as malformed or suppressed come back wrapped in
// ErrInvalidRecipient; everything else is treated as retriable.
func (t *postmarkTransport) Send(ctx context.Context, address string, content Content) error {
	if !emailRegex.MatchString(address) {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidRecipient, address)
	}

	resp, err := t.client.SendEmail(ctx, postmark.Email{
		From:       t.config.SenderEmail,
		ReplyTo:    t.config.ReplyToEmail,
		To:         address,
		Subject:    content.Subject,
		HTMLBody:   content.BodyHTML,
		Tag:        "brief",
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		apiErr := fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
		switch resp.ErrorCode {
		case postmarkErrInvalidEmail, postmarkErrInactiveRecipient:
			return errors.Join(ErrInvalidRecipient, apiErr)
		default:
			return errors.Join(ErrSendFailed, apiErr)
		}
	}
	return nil
}
