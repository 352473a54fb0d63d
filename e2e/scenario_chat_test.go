package e2e

import (
	"testing"

	"chat-relay/client"

	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseChatSuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

func (s *testChatSuite) TestMessageLifecycleFlow() {
	var (
		alice, bob     *client.Client
		aliceID, bobID string
		messageID      uint64
	)

	s.Run("Step 0: Register and authenticate both participants", func() {
		alice, aliceID = s.Connect("alice")
		bob, bobID = s.Connect("bob")
	})

	s.Run("Step 1: Alice sends, Bob is notified live", func() {
		messageID = s.Send(alice, bobID, "hi")

		env, err := bob.WaitFor("new_message", waitTimeout)
		s.Require().NoError(err)
		var received struct {
			ID      uint64 `json:"id"`
			Message string `json:"message"`
			Read    bool   `json:"read"`
		}
		s.Require().NoError(env.Decode(&received))
		s.Require().Equal(messageID, received.ID)
		s.Require().Equal("hi", received.Message)
		s.Require().False(received.Read)
	})

	s.Run("Step 2: Both sides see the same unread conversation", func() {
		aliceView := s.View(alice, bobID)
		bobView := s.View(bob, aliceID)
		s.Require().Len(aliceView.Messages, 1)
		s.Require().Len(bobView.Messages, 1)
		s.Require().False(aliceView.Messages[0].Read)
		s.Require().False(bobView.Messages[0].Read)
	})

	s.Run("Step 3: Bob reads, Alice learns about it", func() {
		s.Require().NoError(bob.Emit("mark_read", map[string]any{"messageId": messageID}))

		env, err := alice.WaitFor("message_read", waitTimeout)
		s.Require().NoError(err)
		var read struct {
			MessageID uint64 `json:"messageId"`
			ReadBy    string `json:"readBy"`
		}
		s.Require().NoError(env.Decode(&read))
		s.Require().Equal(messageID, read.MessageID)
		s.Require().Equal(bobID, read.ReadBy)

		aliceView := s.View(alice, bobID)
		s.Require().True(aliceView.Messages[0].Read)
	})

	s.Run("Step 4: Alice hides the message for herself only", func() {
		s.Require().NoError(alice.Emit("delete_for_me", map[string]any{"messageId": messageID}))
		_, err := alice.WaitFor("message_deleted", waitTimeout)
		s.Require().NoError(err)

		s.Require().Empty(s.View(alice, bobID).Messages)
		s.Require().Len(s.View(bob, aliceID).Messages, 1)
	})

	s.Run("Step 5: Bob may not delete for all", func() {
		s.Require().NoError(bob.Emit("delete_for_all", map[string]any{"messageId": messageID}))
		env, err := bob.WaitFor("error", waitTimeout)
		s.Require().NoError(err)
		var failure struct {
			Message string `json:"message"`
		}
		s.Require().NoError(env.Decode(&failure))
		s.Require().Equal("You can only delete for all your own messages", failure.Message)

		s.Require().Len(s.View(bob, aliceID).Messages, 1)
	})

	s.Run("Step 6: Alice deletes for all, the message is gone everywhere", func() {
		s.Require().NoError(alice.Emit("delete_for_all", map[string]any{"messageId": messageID}))
		_, err := bob.WaitFor("message_deleted", waitTimeout)
		s.Require().NoError(err)

		s.Require().Empty(s.View(alice, bobID).Messages)
		s.Require().Empty(s.View(bob, aliceID).Messages)
	})
}

func (s *testChatSuite) TestMarkAllReadFlow() {
	alice, aliceID := s.Connect("alice")
	bob, bobID := s.Connect("bob")

	s.Send(alice, bobID, "first")
	s.Send(alice, bobID, "second")

	s.Require().NoError(bob.Emit("mark_all_read", map[string]any{"otherUserId": aliceID}))
	env, err := bob.WaitFor("all_read", waitTimeout)
	s.Require().NoError(err)

	var allRead struct {
		OtherUserID string `json:"otherUserId"`
		Count       int    `json:"count"`
	}
	s.Require().NoError(env.Decode(&allRead))
	s.Require().Equal(aliceID, allRead.OtherUserID)
	s.Require().Equal(2, allRead.Count)

	// The sender's view agrees.
	view := s.View(alice, bobID)
	s.Require().Len(view.Messages, 2)
	for _, m := range view.Messages {
		s.Require().True(m.Read)
	}

	// Nothing left on a second pass.
	s.Require().NoError(bob.Emit("mark_all_read", map[string]any{"otherUserId": aliceID}))
	env, err = bob.WaitFor("all_read", waitTimeout)
	s.Require().NoError(err)
	s.Require().NoError(env.Decode(&allRead))
	s.Require().Equal(0, allRead.Count)
}

func (s *testChatSuite) TestSearchFlow() {
	alice, _ := s.Connect("alice")
	_, bobID := s.Connect("bob")

	s.Send(alice, bobID, "the quarterly invoice is attached")
	s.Send(alice, bobID, "see you tomorrow")

	s.Require().NoError(alice.Emit("search_messages", map[string]any{"query": "invoice"}))
	env, err := alice.WaitFor("search_results", waitTimeout)
	s.Require().NoError(err)

	var results struct {
		Query    string `json:"query"`
		Messages []struct {
			Message string `json:"message"`
		} `json:"messages"`
	}
	s.Require().NoError(env.Decode(&results))
	s.Require().Equal("invoice", results.Query)
	s.Require().Len(results.Messages, 1)
	s.Require().Equal("the quarterly invoice is attached", results.Messages[0].Message)
}

func (s *testChatSuite) TestUnauthenticatedConnectionIsRejected() {
	c, err := client.Dial(s.url)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })

	s.Require().NoError(c.Emit("send_message", map[string]any{
		"receiverId": "anyone", "message": "hi",
	}))
	env, err := c.WaitFor("error", waitTimeout)
	s.Require().NoError(err)

	var failure struct {
		Message string `json:"message"`
	}
	s.Require().NoError(env.Decode(&failure))
	s.Require().Equal("Not authenticated", failure.Message)
}
