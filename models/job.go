package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Job statuses. A job that still has retries left always goes back to
// PENDING; there is no separate "queued" status.
const (
	StatusPending      = "PENDING"
	StatusProcessing   = "PROCESSING"
	StatusDone         = "DONE"
	StatusFailed       = "FAILED"
	StatusFormNotFound = "FORM_NOT_FOUND"
)

type Job struct {
	ID                  string         `json:"id"`
	Status              string         `json:"status"`
	RetryCount          int            `json:"retry_count"`
	LastError           sql.NullString `json:"last_error"`
	WorkerID            sql.NullString `json:"worker_id"`
	LockedAt            sql.NullTime   `json:"locked_at"`
	ScheduledTime       sql.NullTime   `json:"scheduled_time"`
	TimeZone            sql.NullString `json:"time_zone"`
	ContactUsURL        sql.NullString `json:"contact_us_url"`
	FormURL             sql.NullString `json:"form_url"`
	WebsiteURL          sql.NullString `json:"website_url"`
	ScrapingStatus      sql.NullString `json:"scraping_status"`
	FullName            sql.NullString `json:"full_name"`
	FirstName           sql.NullString `json:"first_name"`
	LastName            sql.NullString `json:"last_name"`
	CompanyName         sql.NullString `json:"company_name"`
	EmailAddress        sql.NullString `json:"email_address"`
	PhoneNumber         sql.NullString `json:"phone_number"`
	PersonalizedMessage sql.NullString `json:"personalized_message"`
	CampaignName        sql.NullString `json:"campaign_name"`
	SQSMessageID        sql.NullString `json:"sqs_message_id"`
	SQSReceiptHandle    sql.NullString `json:"sqs_receipt_handle"`
	SQSQueueURL         sql.NullString `json:"sqs_queue_url"`
	AWSRegion           sql.NullString `json:"aws_region"`
	WorkerInstanceIP    sql.NullString `json:"worker_instance_ip"`
	WorkerStartedAt     sql.NullTime   `json:"worker_started_at"`
	WorkerCompletedAt   sql.NullTime   `json:"worker_completed_at"`
	SubmissionTime      sql.NullTime   `json:"submission_time"`
	UserCompletedTime   sql.NullString `json:"user_completed_time"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TargetURL returns the best known URL for the job's contact form.
func (j *Job) TargetURL() string {
	for _, u := range []sql.NullString{j.ContactUsURL, j.FormURL, j.WebsiteURL} {
		if u.Valid && u.String != "" {
			return u.String
		}
	}
	return ""
}

type JobModel struct {
	DB          *sql.DB
	MaxRetries  int
	LockTimeout time.Duration
}

func NewJobModel(db *sql.DB, maxRetries int, lockTimeout time.Duration) *JobModel {
	return &JobModel{DB: db, MaxRetries: maxRetries, LockTimeout: lockTimeout}
}

const jobColumns = `id, status, retry_count, last_error, worker_id, locked_at,
	scheduled_time, time_zone, contact_us_url, form_url, website_url, scraping_status,
	full_name, first_name, last_name, company_name, email_address, phone_number,
	personalized_message, campaign_name, sqs_message_id, sqs_receipt_handle,
	sqs_queue_url, aws_region, worker_instance_ip, worker_started_at,
	worker_completed_at, submission_time, user_completed_time, created_at, updated_at`

func scanJob(row *sql.Row) (*Job, error) {
	job := &Job{}
	err := row.Scan(
		&job.ID, &job.Status, &job.RetryCount, &job.LastError, &job.WorkerID, &job.LockedAt,
		&job.ScheduledTime, &job.TimeZone, &job.ContactUsURL, &job.FormURL, &job.WebsiteURL, &job.ScrapingStatus,
		&job.FullName, &job.FirstName, &job.LastName, &job.CompanyName, &job.EmailAddress, &job.PhoneNumber,
		&job.PersonalizedMessage, &job.CampaignName, &job.SQSMessageID, &job.SQSReceiptHandle,
		&job.SQSQueueURL, &job.AWSRegion, &job.WorkerInstanceIP, &job.WorkerStartedAt,
		&job.WorkerCompletedAt, &job.SubmissionTime, &job.UserCompletedTime, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNext atomically claims the oldest PENDING job for this worker.
// FOR UPDATE SKIP LOCKED guarantees two racing workers never win the same row.
// Returns (nil, nil) when no eligible row exists.
func (m *JobModel) ClaimNext(workerID string) (*Job, error) {
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET status = '%s',
		    worker_id = $1,
		    locked_at = NOW(),
		    updated_at = NOW()
		WHERE id = (
		    SELECT id
		    FROM contact_urls
		    WHERE status = '%s'
		    ORDER BY created_at ASC
		    LIMIT 1
		    FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, StatusProcessing, StatusPending, jobColumns)

	job, err := scanJob(m.DB.QueryRow(query, workerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %v", err)
	}
	return job, nil
}

// ClaimByID claims a specific job referenced by a queue message. A row that is
// already taken, finished, or out of retries yields (nil, nil): the caller
// treats that as "skip", not an error.
func (m *JobModel) ClaimByID(id, workerID string) (*Job, error) {
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET status = '%s',
		    worker_id = $1,
		    locked_at = NOW(),
		    updated_at = NOW()
		WHERE id = (
		    SELECT id
		    FROM contact_urls
		    WHERE status = '%s' AND id = $2 AND retry_count < $3
		    LIMIT 1
		    FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, StatusProcessing, StatusPending, jobColumns)

	job, err := scanJob(m.DB.QueryRow(query, workerID, id, m.MaxRetries))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %v", id, err)
	}
	return job, nil
}

// MarkDone transitions a job to DONE and clears its lease.
func (m *JobModel) MarkDone(id string) error {
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET status = '%s',
		    worker_id = NULL,
		    locked_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`, StatusDone)

	if _, err := m.DB.Exec(query, id); err != nil {
		return fmt.Errorf("mark done %s: %v", id, err)
	}
	return nil
}

// MarkFailed records an error, bumps the retry counter, clears the lease, and
// moves the job to FAILED when the ceiling is reached or back to PENDING when
// retries remain.
func (m *JobModel) MarkFailed(id, errMsg string) error {
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    status = CASE
		        WHEN retry_count + 1 >= $2 THEN '%s'
		        ELSE '%s'
		    END,
		    worker_id = NULL,
		    locked_at = NULL,
		    updated_at = NOW()
		WHERE id = $3`, StatusFailed, StatusPending)

	if _, err := m.DB.Exec(query, errMsg, m.MaxRetries, id); err != nil {
		return fmt.Errorf("mark failed %s: %v", id, err)
	}
	return nil
}

// SetTerminalStatus records a terminal status other than DONE/FAILED,
// currently only FORM_NOT_FOUND, and clears the lease.
func (m *JobModel) SetTerminalStatus(id, status string) error {
	query := `
		UPDATE contact_urls
		SET status = $1,
		    worker_id = NULL,
		    locked_at = NULL,
		    updated_at = NOW()
		WHERE id = $2`

	if _, err := m.DB.Exec(query, status, id); err != nil {
		return fmt.Errorf("set status %s on %s: %v", status, id, err)
	}
	return nil
}

// Release puts a claimed job back to PENDING without touching retry_count.
// Used when the scheduling gate says the job is not yet due.
func (m *JobModel) Release(id string) error {
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET status = '%s',
		    worker_id = NULL,
		    locked_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = '%s'`, StatusPending, StatusProcessing)

	if _, err := m.DB.Exec(query, id); err != nil {
		return fmt.Errorf("release %s: %v", id, err)
	}
	return nil
}

// RecoverStuckJobs resets PROCESSING jobs whose lease expired and that still
// have retries left. Returns the number of recovered rows.
func (m *JobModel) RecoverStuckJobs() (int64, error) {
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET status = '%s',
		    worker_id = NULL,
		    locked_at = NULL,
		    retry_count = retry_count + 1,
		    updated_at = NOW()
		WHERE status = '%s'
		  AND locked_at < NOW() - $1::interval
		  AND retry_count < $2`, StatusPending, StatusProcessing)

	interval := fmt.Sprintf("%d minutes", int(m.LockTimeout.Minutes()))
	res, err := m.DB.Exec(query, interval, m.MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("recover stuck jobs: %v", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// QueueMetadata is the audit trail persisted around a queue-driven attempt.
type QueueMetadata struct {
	MessageID     string
	ReceiptHandle string
	QueueURL      string
	Region        string
	InstanceIP    string
	Status        string
	Started       bool
	Completed     bool
}

// RecordQueueMetadata writes the SQS/worker audit columns for a job. When the
// attempt completes and the job carries a time zone, a completion timestamp
// localized to that zone is stored alongside the UTC one.
func (m *JobModel) RecordQueueMetadata(job *Job, meta QueueMetadata) error {
	fields := []string{"sqs_queue_url = $1", "aws_region = $2", "worker_instance_ip = $3"}
	values := []interface{}{meta.QueueURL, meta.Region, meta.InstanceIP}

	add := func(expr string, v interface{}) {
		values = append(values, v)
		fields = append(fields, fmt.Sprintf(expr, len(values)))
	}

	if meta.MessageID != "" {
		add("sqs_message_id = $%d", meta.MessageID)
	}
	if meta.ReceiptHandle != "" {
		add("sqs_receipt_handle = $%d", meta.ReceiptHandle)
	}
	if meta.Status != "" {
		add("status = $%d", meta.Status)
	}
	if meta.Started {
		fields = append(fields, "worker_started_at = NOW()")
	}
	if meta.Completed {
		fields = append(fields, "worker_completed_at = NOW()", "submission_time = NOW()")
		if job.TimeZone.Valid && job.TimeZone.String != "" {
			if loc, err := time.LoadLocation(job.TimeZone.String); err == nil {
				add("user_completed_time = $%d", time.Now().In(loc).String())
			}
		}
	}

	values = append(values, job.ID)
	query := fmt.Sprintf(`
		UPDATE contact_urls
		SET %s, updated_at = NOW()
		WHERE id = $%d`, strings.Join(fields, ", "), len(values))

	if _, err := m.DB.Exec(query, values...); err != nil {
		return fmt.Errorf("record queue metadata %s: %v", job.ID, err)
	}
	return nil
}

// MarkScrapingResult stores a discovered contact page URL, or records that
// scraping found nothing.
func (m *JobModel) MarkScrapingResult(id, foundURL string) error {
	var err error
	if foundURL != "" {
		_, err = m.DB.Exec(`
			UPDATE contact_urls
			SET contact_us_url = $1, scraping_status = 'DONE', updated_at = NOW()
			WHERE id = $2`, foundURL, id)
	} else {
		_, err = m.DB.Exec(`
			UPDATE contact_urls
			SET scraping_status = 'NOT_FOUND', updated_at = NOW()
			WHERE id = $1`, id)
	}
	if err != nil {
		return fmt.Errorf("mark scraping result %s: %v", id, err)
	}
	return nil
}

// GetByID fetches a job without locking it.
func (m *JobModel) GetByID(id string) (*Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM contact_urls WHERE id = $1`, jobColumns)
	job, err := scanJob(m.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %v", id, err)
	}
	return job, nil
}

// List returns jobs ordered newest first, for the dashboard API.
func (m *JobModel) List(status string, limit, offset int) ([]*Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM contact_urls`, jobColumns)
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := m.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %v", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.Status, &job.RetryCount, &job.LastError, &job.WorkerID, &job.LockedAt,
			&job.ScheduledTime, &job.TimeZone, &job.ContactUsURL, &job.FormURL, &job.WebsiteURL, &job.ScrapingStatus,
			&job.FullName, &job.FirstName, &job.LastName, &job.CompanyName, &job.EmailAddress, &job.PhoneNumber,
			&job.PersonalizedMessage, &job.CampaignName, &job.SQSMessageID, &job.SQSReceiptHandle,
			&job.SQSQueueURL, &job.AWSRegion, &job.WorkerInstanceIP, &job.WorkerStartedAt,
			&job.WorkerCompletedAt, &job.SubmissionTime, &job.UserCompletedTime, &job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountsByStatus returns how many jobs sit in each status.
func (m *JobModel) CountsByStatus() (map[string]int, error) {
	rows, err := m.DB.Query(`SELECT status, COUNT(*) FROM contact_urls GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %v", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count row: %v", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
