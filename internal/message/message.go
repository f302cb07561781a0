// Package message defines the wire payload for deploy event
// notifications.
package message

import "time"

// DeployEvent describes one completed deploy or rollback.
type DeployEvent struct {
	Mode      string    `json:"mode"`
	Release   string    `json:"release"`
	Revision  string    `json:"revision,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Host      string    `json:"host"`
	DeployDir string    `json:"deploy_dir"`
	Timestamp time.Time `json:"ts"`
}
