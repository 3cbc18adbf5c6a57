//go:build e2e

package e2e

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/quaero-ai/quaero/internal/api/handlers"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

func TestE2E_KnowledgeBaseLifecycle(t *testing.T) {
	env := SetupTestEnv(t)

	var created handlers.KnowledgeBaseResponse
	status := env.PostJSON("/api/v1/knowledge-bases", map[string]string{
		"name":        "handbook",
		"description": "company handbook",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.ID == "" || created.Name != "handbook" {
		t.Fatalf("unexpected knowledge base: %+v", created)
	}

	var fetched handlers.KnowledgeBaseResponse
	if status := env.GetJSON("/api/v1/knowledge-bases/"+created.ID, &fetched); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if fetched.Description != "company handbook" {
		t.Fatalf("unexpected description %q", fetched.Description)
	}

	var list []handlers.KnowledgeBaseResponse
	if status := env.GetJSON("/api/v1/knowledge-bases", &list); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 knowledge base, got %d", len(list))
	}

	if status := env.Delete("/api/v1/knowledge-bases/" + created.ID); status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
	if status := env.GetJSON("/api/v1/knowledge-bases/"+created.ID, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestE2E_DocumentIngestAndAsk(t *testing.T) {
	env := SetupTestEnv(t)
	kbID := env.CreateKnowledgeBase("policies")

	var doc handlers.DocumentResponse
	status := env.UploadDocument(kbID, "refunds.txt", "text/plain",
		[]byte("Our refund policy allows returns within 30 days of purchase. Contact support to start a return."), &doc)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 for upload, got %d", status)
	}
	if doc.Status != "pending" {
		t.Fatalf("expected pending document, got %s", doc.Status)
	}

	env.RunJobs()

	doc = env.WaitForDocumentStatus(doc.ID, "completed")
	if doc.ChunkCount == 0 {
		t.Fatal("expected at least one chunk")
	}
	if doc.Summary == "" {
		t.Fatal("expected a generated summary")
	}

	var conv handlers.ConversationResponse
	status = env.PostJSON(fmt.Sprintf("/api/v1/knowledge-bases/%s/conversations", kbID),
		map[string]string{"title": "returns"}, &conv)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for conversation, got %d", status)
	}

	var ask handlers.AskResponse
	status = env.PostJSON(fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID),
		map[string]string{"query": "What is the refund policy?"}, &ask)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 for ask, got %d", status)
	}
	if ask.AssistantMessage.Status != "pending" {
		t.Fatalf("expected pending assistant message, got %s", ask.AssistantMessage.Status)
	}

	env.RunJobs()

	answer := env.waitForMessage(ask.AssistantMessage.ID, "completed")
	if answer.Content != env.Model.SynthesisAnswer {
		t.Fatalf("unexpected answer %q", answer.Content)
	}
	if len(answer.Sources) == 0 {
		t.Fatal("expected retrieval sources on the answer")
	}
	if answer.Sources[0].DocumentID != doc.ID {
		t.Fatalf("expected source from document %s, got %s", doc.ID, answer.Sources[0].DocumentID)
	}
	if answer.Routing == nil || answer.Routing.Service != "retrieval" {
		t.Fatalf("unexpected routing decision: %+v", answer.Routing)
	}
}

func TestE2E_StoredQuestionAnswersDirectly(t *testing.T) {
	env := SetupTestEnv(t)
	kbID := env.CreateKnowledgeBase("faq")

	var question handlers.QuestionResponse
	status := env.PostJSON(fmt.Sprintf("/api/v1/knowledge-bases/%s/questions", kbID),
		map[string]string{
			"question": "How many vacation days do employees get?",
			"answer":   "Employees get 25 vacation days per year.",
		}, &question)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for question, got %d", status)
	}

	env.RunJobs()

	var conv handlers.ConversationResponse
	env.PostJSON(fmt.Sprintf("/api/v1/knowledge-bases/%s/conversations", kbID),
		map[string]string{}, &conv)

	var ask handlers.AskResponse
	env.PostJSON(fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID),
		map[string]string{"query": "How many vacation days do employees get?"}, &ask)

	env.RunJobs()

	answer := env.waitForMessage(ask.AssistantMessage.ID, "completed")
	if answer.Content != "Employees get 25 vacation days per year." {
		t.Fatalf("expected the stored answer verbatim, got %q", answer.Content)
	}
	if answer.Routing == nil || answer.Routing.Service != "questions" {
		t.Fatalf("expected questions routing, got %+v", answer.Routing)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].QuestionID != question.ID {
		t.Fatalf("expected the matched question as source, got %+v", answer.Sources)
	}
}

func TestE2E_DocumentDeleteRemovesVectors(t *testing.T) {
	env := SetupTestEnv(t)
	kbID := env.CreateKnowledgeBase("ephemeral")

	var doc handlers.DocumentResponse
	env.UploadDocument(kbID, "notes.txt", "text/plain",
		[]byte("Temporary notes that will be deleted shortly after ingestion finishes."), &doc)
	env.RunJobs()
	env.WaitForDocumentStatus(doc.ID, "completed")

	ids, err := env.Vectors.ListIDs(env.Ctx, vectorstore.NamespaceChunks, vectorstore.Filter{DocumentID: doc.ID})
	if err != nil {
		t.Fatalf("failed to list vectors: %v", err)
	}
	if len(ids) == 0 {
		t.Fatal("expected indexed chunk vectors before deletion")
	}

	if status := env.Delete("/api/v1/documents/" + doc.ID); status != http.StatusAccepted {
		t.Fatalf("expected 202 for delete, got %d", status)
	}
	env.RunJobs()

	if status := env.GetJSON("/api/v1/documents/"+doc.ID, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
	ids, err = env.Vectors.ListIDs(env.Ctx, vectorstore.NamespaceChunks, vectorstore.Filter{DocumentID: doc.ID})
	if err != nil {
		t.Fatalf("failed to list vectors: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected zero residual vectors, found %d", len(ids))
	}
}

func TestE2E_FailedIngestionIsRetriedThenResubmitted(t *testing.T) {
	env := SetupTestEnv(t)
	kbID := env.CreateKnowledgeBase("flaky")

	env.Model.SetEmbedErr(errors.New("provider unavailable"))

	var doc handlers.DocumentResponse
	env.UploadDocument(kbID, "doc.txt", "text/plain",
		[]byte("Content that cannot be embedded while the provider is down."), &doc)
	env.RunJobs()

	doc = env.WaitForDocumentStatus(doc.ID, "failed")
	if doc.ErrorMessage == "" {
		t.Fatal("expected a recorded error message")
	}

	env.Model.SetEmbedErr(nil)

	var resubmitted handlers.DocumentResponse
	resp, err := env.HTTPClient.Post(env.Server.URL+"/api/v1/documents/"+doc.ID+"/resubmit", "application/json", nil)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if status := env.decode(resp, &resubmitted); status != http.StatusAccepted {
		t.Fatalf("expected 202 for resubmit, got %d", status)
	}

	env.RunJobs()
	doc = env.WaitForDocumentStatus(doc.ID, "completed")
	if doc.ChunkCount == 0 {
		t.Fatal("expected chunks after successful resubmission")
	}
}

// waitForMessage polls the message endpoint until the status matches
func (e *TestEnv) waitForMessage(messageID, status string) handlers.MessageResponse {
	e.T.Helper()
	var msg handlers.MessageResponse
	for i := 0; i < 50; i++ {
		code := e.GetJSON("/api/v1/messages/"+messageID, &msg)
		if code == http.StatusOK && msg.Status == status {
			return msg
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("message %s never reached status %s (last: %s, error: %s)",
		messageID, status, msg.Status, msg.ErrorMessage)
	return msg
}
