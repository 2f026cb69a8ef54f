// Package retention deletes stored traces by age and by count, either on
// demand or on a cron schedule.
package retention
