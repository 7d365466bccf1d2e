package shared

import "fmt"

// JobLockKey builds the redis key that serialises runs of a background job.
func JobLockKey(job string) string {
	return fmt.Sprintf("jobs:%s:lock", job)
}
