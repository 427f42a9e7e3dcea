package executor

import "github.com/ibeckermayer/xpilot/internal/browser"

// Candidate selectors, most specific first. X reshuffles its compose UI often.
var (
	ComposeBox = browser.Selectors{
		`[data-testid="tweetTextarea_0"]`,
		`div[role="textbox"][contenteditable="true"]`,
		`div.public-DraftEditor-content[contenteditable="true"]`,
		`[data-testid="tweetTextarea_0RichTextInputContainer"] [contenteditable="true"]`,
	}

	SubmitButton = browser.Selectors{
		`[data-testid="tweetButtonInline"]`,
		`[data-testid="tweetButton"]`,
	}

	ReplyComposeBox = browser.Selectors{
		`div[role="dialog"] [data-testid="tweetTextarea_0"]`,
		`div[role="dialog"] div[role="textbox"][contenteditable="true"]`,
		`[data-testid="tweetTextarea_0"]`,
	}

	ReplySubmitButton = browser.Selectors{
		`div[role="dialog"] [data-testid="tweetButton"]`,
		`[data-testid="tweetButton"]`,
	}
)

const (
	HomeURL          = "https://x.com/home"
	NotificationsURL = "https://x.com/notifications/mentions"
)

// Attribute stamped on like buttons by likeCandidates.
const likeIndexAttr = "data-engage-like"
