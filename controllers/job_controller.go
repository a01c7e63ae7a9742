package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leadreach/models"
	"leadreach/utils"
)

// JobController exposes the read-only dashboard view of the jobs table.
type JobController struct {
	JobModel *models.JobModel
}

func NewJobController(jobModel *models.JobModel) *JobController {
	return &JobController{JobModel: jobModel}
}

// ListJobs returns jobs, optionally filtered by status.
func (c *JobController) ListJobs(ctx *gin.Context) {
	status := ctx.Query("status")

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		utils.BadRequestError(ctx, "limit must be between 1 and 200", err)
		return
	}
	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		utils.BadRequestError(ctx, "offset must be non-negative", err)
		return
	}

	jobs, err := c.JobModel.List(status, limit, offset)
	if err != nil {
		utils.InternalServerError(ctx, "Failed to list jobs", err)
		return
	}

	utils.SuccessResponse(ctx, http.StatusOK, "Jobs retrieved", gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob returns a single job by id.
func (c *JobController) GetJob(ctx *gin.Context) {
	job, err := c.JobModel.GetByID(ctx.Param("id"))
	if err != nil {
		utils.InternalServerError(ctx, "Failed to fetch job", err)
		return
	}
	if job == nil {
		utils.NotFoundError(ctx, "Job not found")
		return
	}

	utils.SuccessResponse(ctx, http.StatusOK, "Job retrieved", job)
}

// GetStats returns job counts per status.
func (c *JobController) GetStats(ctx *gin.Context) {
	counts, err := c.JobModel.CountsByStatus()
	if err != nil {
		utils.InternalServerError(ctx, "Failed to count jobs", err)
		return
	}

	utils.SuccessResponse(ctx, http.StatusOK, "Stats retrieved", counts)
}
