package worker

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadreach/models"
	"leadreach/queue"
	"leadreach/services"
)

// JobStore is the slice of the job model the worker drives.
type JobStore interface {
	ClaimNext(workerID string) (*models.Job, error)
	ClaimByID(id, workerID string) (*models.Job, error)
	MarkDone(id string) error
	MarkFailed(id, errMsg string) error
	SetTerminalStatus(id, status string) error
	Release(id string) error
	RecordQueueMetadata(job *models.Job, meta models.QueueMetadata) error
	MarkScrapingResult(id, foundURL string) error
}

// Queue delivers at-least-once job notifications.
type Queue interface {
	Receive() (*queue.Message, error)
	Delete(receipt string) error
	URL() string
}

// FormSubmitter runs one fill-and-submit attempt.
type FormSubmitter interface {
	SubmitContactForm(formURL string, payload services.FormPayload) services.FormResult
}

// ContactFinder discovers a contact page for a bare website URL.
type ContactFinder interface {
	Find(websiteURL string) string
}

// Worker processes one job at a time: claim, gate, fill, record, ack.
type Worker struct {
	ID         string
	Store      JobStore
	Queue      Queue
	Submitter  FormSubmitter
	Finder     ContactFinder
	Region     string
	InstanceIP string
	MaxRetries int
	IdleDelay  time.Duration
}

func New(store JobStore, q Queue, submitter FormSubmitter, finder ContactFinder, region string, maxRetries int) *Worker {
	return &Worker{
		ID:         uuid.NewString(),
		Store:      store,
		Queue:      q,
		Submitter:  submitter,
		Finder:     finder,
		Region:     region,
		InstanceIP: detectInstanceIP(),
		MaxRetries: maxRetries,
		IdleDelay:  5 * time.Second,
	}
}

// Run polls the queue until the context is canceled. Cancellation is only
// honored between jobs; an in-flight job always runs to completion. When a
// long poll comes back empty the backlog is checked, so requeued retries and
// rows whose message already expired still get worked.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("Worker %s started (region=%s ip=%s)", w.ID, w.Region, w.InstanceIP)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %s exiting cleanly", w.ID)
			return
		default:
		}

		msg, err := w.Queue.Receive()
		if err != nil {
			log.Printf("Worker %s receive error: %v", w.ID, err)
			w.idle(ctx)
			continue
		}
		if msg == nil {
			w.processBacklog()
			continue
		}

		w.processMessage(msg)
	}
}

func (w *Worker) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.IdleDelay):
	}
}

// processMessage runs the full pipeline for one queue message.
func (w *Worker) processMessage(msg *queue.Message) {
	jobID, err := msg.ParseJobID()
	if err != nil {
		log.Printf("Worker %s dropping malformed message %s: %v", w.ID, msg.ID, err)
		w.deleteMessage(msg)
		return
	}

	job, err := w.Store.ClaimByID(jobID, w.ID)
	if err != nil {
		log.Printf("Worker %s claim error for job %s: %v", w.ID, jobID, err)
		return
	}
	if job == nil {
		// Already taken, finished, or out of retries: skip, and drop the
		// message so it is not redelivered forever.
		w.deleteMessage(msg)
		return
	}

	log.Printf("Worker %s claimed job %s", w.ID, job.ID)
	w.runClaimedJob(job, msg)
}

// processBacklog claims the oldest PENDING job directly from the store. This
// is how a job requeued for retry runs again even if its queue message is
// gone.
func (w *Worker) processBacklog() {
	job, err := w.Store.ClaimNext(w.ID)
	if err != nil {
		log.Printf("Worker %s backlog claim error: %v", w.ID, err)
		return
	}
	if job == nil {
		return
	}

	log.Printf("Worker %s claimed backlog job %s", w.ID, job.ID)
	w.runClaimedJob(job, nil)
}

// runClaimedJob drives a claimed job to an outcome. msg is nil for backlog
// jobs. The message is acknowledged only once the job reaches a terminal
// status (DONE, FAILED, FORM_NOT_FOUND); a failure with retries left keeps
// the message in flight so the visibility timeout redelivers it for the next
// attempt.
func (w *Worker) runClaimedJob(job *models.Job, msg *queue.Message) {
	meta := models.QueueMetadata{Status: models.StatusProcessing, Started: true}
	if msg != nil {
		meta.MessageID = msg.ID
		meta.ReceiptHandle = msg.Receipt
	}
	w.recordMetadata(job, meta)

	if !services.ShouldRunNow(job.ScheduledTime, job.TimeZone, time.Now()) {
		// Not due yet: release the claim untouched and let the visibility
		// timeout redeliver the message closer to the scheduled time.
		log.Printf("Worker %s releasing job %s: not yet due", w.ID, job.ID)
		if err := w.Store.Release(job.ID); err != nil {
			log.Printf("Worker %s release error for job %s: %v", w.ID, job.ID, err)
		}
		return
	}

	targetURL := w.resolveTargetURL(job)
	if targetURL == "" {
		w.finishFormNotFound(job, msg)
		return
	}

	result := w.Submitter.SubmitContactForm(targetURL, BuildPayload(job))
	for _, note := range result.Notes {
		log.Printf("Worker %s job %s note: %s", w.ID, job.ID, note)
	}

	switch {
	case result.FormNotFound:
		w.finishFormNotFound(job, msg)
	case result.Success:
		if err := w.Store.MarkDone(job.ID); err != nil {
			log.Printf("Worker %s mark done error for job %s: %v", w.ID, job.ID, err)
			return
		}
		w.recordMetadata(job, models.QueueMetadata{Completed: true})
		w.deleteMessage(msg)
		log.Printf("Worker %s job %s DONE", w.ID, job.ID)
	default:
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "submission not confirmed"
		}
		if err := w.Store.MarkFailed(job.ID, errMsg); err != nil {
			log.Printf("Worker %s mark failed error for job %s: %v", w.ID, job.ID, err)
			return
		}
		w.recordMetadata(job, models.QueueMetadata{Completed: true})
		if job.RetryCount+1 >= w.MaxRetries {
			// Ceiling reached: the row is FAILED and nothing claims it again.
			w.deleteMessage(msg)
			log.Printf("Worker %s job %s FAILED permanently: %s", w.ID, job.ID, errMsg)
		} else {
			// Retries remain: the row is back to PENDING. Keep the message in
			// flight so redelivery drives the next attempt.
			log.Printf("Worker %s job %s attempt failed, will retry: %s", w.ID, job.ID, errMsg)
		}
	}
}

// resolveTargetURL returns the job's known contact form URL, scraping the
// website for one when needed.
func (w *Worker) resolveTargetURL(job *models.Job) string {
	if job.ContactUsURL.Valid && job.ContactUsURL.String != "" {
		return job.ContactUsURL.String
	}

	if w.Finder != nil && job.WebsiteURL.Valid && job.WebsiteURL.String != "" {
		found := w.Finder.Find(job.WebsiteURL.String)
		if err := w.Store.MarkScrapingResult(job.ID, found); err != nil {
			log.Printf("Worker %s scraping result error for job %s: %v", w.ID, job.ID, err)
		}
		if found != "" {
			return found
		}
	}

	return job.TargetURL()
}

func (w *Worker) finishFormNotFound(job *models.Job, msg *queue.Message) {
	if err := w.Store.SetTerminalStatus(job.ID, models.StatusFormNotFound); err != nil {
		log.Printf("Worker %s status error for job %s: %v", w.ID, job.ID, err)
		return
	}
	w.recordMetadata(job, models.QueueMetadata{Completed: true})
	w.deleteMessage(msg)
	log.Printf("Worker %s job %s: form not found", w.ID, job.ID)
}

func (w *Worker) recordMetadata(job *models.Job, meta models.QueueMetadata) {
	meta.QueueURL = w.Queue.URL()
	meta.Region = w.Region
	meta.InstanceIP = w.InstanceIP
	if err := w.Store.RecordQueueMetadata(job, meta); err != nil {
		log.Printf("Worker %s metadata error for job %s: %v", w.ID, job.ID, err)
	}
}

func (w *Worker) deleteMessage(msg *queue.Message) {
	if msg == nil {
		return
	}
	if err := w.Queue.Delete(msg.Receipt); err != nil {
		log.Printf("Worker %s delete message error: %v", w.ID, err)
	}
}

// BuildPayload derives the fill values from a job record.
func BuildPayload(job *models.Job) services.FormPayload {
	name := job.FullName.String
	if name == "" {
		name = strings.TrimSpace(strings.Join(nonEmpty(job.FirstName.String, job.LastName.String), " "))
	}

	subject := job.CampaignName.String
	if subject == "" {
		subject = "Business Inquiry"
	}

	message := job.PersonalizedMessage.String
	if message == "" {
		message = fmt.Sprintf("Hello, I'm interested in your services on %s", job.WebsiteURL.String)
	}

	return services.FormPayload{
		Name:    name,
		Email:   job.EmailAddress.String,
		Phone:   job.PhoneNumber.String,
		Subject: subject,
		Message: message,
		Company: job.CompanyName.String,
	}
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// detectInstanceIP finds the outbound interface address for the audit trail.
func detectInstanceIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "unknown"
}
