// Package chat is the Telegram front-end of the bot. It turns chat messages
// into portal operations and formats the results back.
package chat

import (
	"context"

	"intralu-bot/internal/portal"
)

// Message is one outgoing chat message. HTML messages use the Telegram HTML
// subset, every interpolated value must be escaped.
type Message struct {
	Text string
	HTML bool
}

type Sender interface {
	Send(ctx context.Context, chatID portal.ChatID, msg Message) error
}

// Core is the part of portal.Service the handlers use.
type Core interface {
	GetCourses(ctx context.Context, chatID portal.ChatID, creds portal.Credentials) ([]portal.CourseRef, error)
	GetGradeDetail(ctx context.Context, chatID portal.ChatID, creds portal.Credentials, ref portal.CourseRef) ([]portal.GradeEntry, error)
	SelectCourse(chatID portal.ChatID, index int) (portal.CourseRef, error)
	FindCourse(chatID portal.ChatID, query string) (portal.CourseRef, error)
	LastCourses(chatID portal.ChatID) ([]portal.CourseRef, bool)
	SetCredentials(chatID portal.ChatID, creds portal.Credentials)
	Credentials(chatID portal.ChatID) (portal.Credentials, bool)
}

var _ Core = (*portal.Service)(nil)

// Update is one incoming text message.
type Update struct {
	ChatID portal.ChatID
	Text   string
}
