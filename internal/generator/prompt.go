package generator

import (
	"fmt"
	"strings"

	"github.com/ibeckermayer/xpilot/internal/types"
)

const (
	maxContextTrends = 5
	maxSamples       = 2
	maxSampleExcerpt = 200
)

const defaultPersona = "You write short, natural posts for X. You sound like a curious person, not a brand."

// SystemPrompt returns the system message for persona, or a default one.
func SystemPrompt(persona string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = defaultPersona
	}
	return persona + "\nNever use hashtags unless the topic itself is one. Never wrap your answer in quotes."
}

// BuildPostPrompt constructs the prompt for a post about topic.
func BuildPostPrompt(topic types.TrendCandidate, contextTrends []types.TrendCandidate, samples []string) string {
	var sb strings.Builder

	sb.WriteString("## What is trending right now\n")
	n := 0
	for _, t := range contextTrends {
		if n == maxContextTrends {
			break
		}
		if t.Key() == topic.Key() {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s%s\n", t.Topic, labels(t)))
		n++
	}
	if n == 0 {
		sb.WriteString("- (nothing else notable)\n")
	}

	sb.WriteString("\n## Topic\n")
	sb.WriteString(fmt.Sprintf("%s%s\n", topic.Topic, labels(topic)))

	if len(samples) > 0 {
		sb.WriteString("\n## What people are saying\n")
		for i, s := range samples {
			if i == maxSamples {
				break
			}
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, excerpt(s)))
		}
	}

	sb.WriteString("\n## Task\n")
	sb.WriteString(fmt.Sprintf("Write one original post about the topic, under %d characters. ", types.MaxPostLength))
	sb.WriteString("Add a fresh angle instead of repeating what people are saying. ")
	sb.WriteString("Respond with the post text only.\n")

	return sb.String()
}

// BuildCommentPrompt constructs the prompt for a reply to postText.
func BuildCommentPrompt(postText string) string {
	var sb strings.Builder
	sb.WriteString("## Post\n")
	sb.WriteString(excerpt(postText))
	sb.WriteString("\n\n## Task\n")
	sb.WriteString("Write a short, friendly reply to this post (one or two sentences). ")
	sb.WriteString("Be specific to what it says. Respond with the reply text only.\n")
	return sb.String()
}

func labels(t types.TrendCandidate) string {
	var parts []string
	if t.ContextLabel != "" {
		parts = append(parts, t.ContextLabel)
	}
	if t.VolumeLabel != "" {
		parts = append(parts, t.VolumeLabel)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxSampleExcerpt {
		return string(r[:maxSampleExcerpt]) + ellipsis
	}
	return s
}
