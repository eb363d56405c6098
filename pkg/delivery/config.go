package delivery

// Config holds Postmark transport settings.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"DELIVERY_SENDER_EMAIL"`
	ReplyToEmail         string `env:"DELIVERY_REPLY_TO_EMAIL"`
}
