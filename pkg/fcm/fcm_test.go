package fcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMulticast_CarriesClickAction(t *testing.T) {
	msg := buildMulticast([]string{"t1", "t2"}, NotificationData{
		Title:       "Research ready",
		Body:        "Prepare for meeting with Jane Doe (Other)",
		Data:        map[string]string{"task_id": "task-1"},
		ClickAction: "/tasks/task-1",
	})

	assert.Equal(t, []string{"t1", "t2"}, msg.Tokens)
	assert.Equal(t, "task-1", msg.Data["task_id"])
	assert.Equal(t, "/tasks/task-1", msg.Data["click_action"])
	assert.Equal(t, "/tasks/task-1", msg.Webpush.FCMOptions.Link)
	assert.Equal(t, "Research ready", msg.Notification.Title)
}

func TestBuildMulticast_NoClickAction(t *testing.T) {
	msg := buildMulticast([]string{"t1"}, NotificationData{Title: "x"})
	assert.Nil(t, msg.Webpush.FCMOptions)
	assert.NotContains(t, msg.Data, "click_action")
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abc", prefix("abc"))
	assert.Equal(t, "abcdefghijkl...", prefix("abcdefghijklmnop"))
}
