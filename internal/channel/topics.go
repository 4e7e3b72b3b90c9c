package channel

// Named channel topics pushed by the Linkfield gateway.
const (
	TopicDashboard     = "dashboard"
	TopicNotifications = "notifications"
	TopicJobs          = "jobs"
	TopicGroups        = "peer.groups"
)

// DefaultTopics lists the topics the daemon subscribes to at startup.
func DefaultTopics() []string {
	return []string{TopicDashboard, TopicNotifications, TopicJobs, TopicGroups}
}
