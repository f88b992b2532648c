package config

import (
	"context"
	"strconv"

	"github.com/pinesagetechnology/filemonitor/internal/constants"
	"github.com/pinesagetechnology/filemonitor/internal/models"
)

// Default describes one Configuration row to seed on first run.
type Default struct {
	Key         string
	Value       string
	Category    string
	Description string
}

// Defaults is the compiled-in seed set applied by Bootstrap. Keys absent
// from the table are inserted with these values; existing operator-set
// values are never overwritten.
var Defaults = []Default{
	{Key: "App.ProcessingIntervalSeconds", Value: strconv.Itoa(constants.DefaultProcessingIntervalSeconds), Category: "App", Description: "Seconds between supervisor reconciliation ticks."},
	{Key: "Upload.MaxFileSizeMB", Value: strconv.Itoa(constants.DefaultMaxFileSizeMB), Category: "Upload", Description: "Files larger than this are not enqueued."},
	{Key: "Upload.MaxConcurrentUploads", Value: strconv.Itoa(constants.DefaultMaxConcurrentUploads), Category: "Upload", Description: "Worker pool size for concurrent uploads."},
	{Key: "Upload.MaxRetries", Value: strconv.Itoa(constants.DefaultMaxRetries), Category: "Upload", Description: "Attempts before a job is marked Failed."},
	{Key: "Upload.RetryDelaySeconds", Value: strconv.Itoa(constants.DefaultRetryDelaySeconds), Category: "Upload", Description: "Base of the exponential backoff."},
	{Key: "Upload.MaxRetryDelayMinutes", Value: strconv.Itoa(constants.DefaultMaxRetryDelayMinutes), Category: "Upload", Description: "Upper clamp on backoff delay."},
	{Key: "Upload.ArchiveOnSuccess", Value: constants.DefaultArchiveOnSuccess, Category: "Upload", Description: "Move the file into the data source's archive folder after a successful upload."},
	{Key: "Upload.DeleteOnSuccess", Value: constants.DefaultDeleteOnSuccess, Category: "Upload", Description: "Delete the local file after a successful upload. Takes precedence over ArchiveOnSuccess."},
	{Key: "Azure.DefaultContainer", Value: constants.DefaultContainer, Category: "Azure", Description: "Container used when a data source doesn't specify one."},
	{Key: "Azure.StorageConnectionString", Value: "", Category: "Azure", Description: "Connection string for the target storage account. Empty disables real uploads (localstub backend is used instead)."},
}

// Bootstrap seeds every Default absent from the Configurations table. Safe
// to call on every startup: existing rows are left untouched.
func Bootstrap(ctx context.Context, svc *Service) error {
	for _, d := range Defaults {
		if err := svc.repo.SeedIfAbsent(ctx, models.Configuration{
			Key: d.Key, Value: d.Value, Category: d.Category, Description: d.Description,
		}); err != nil {
			return err
		}
	}
	return nil
}
