package gateway

// DashboardSummary is the headline view of the signed-in member's network.
type DashboardSummary struct {
	Connections       int `json:"connections"`
	FollowedCompanies int `json:"followed_companies"`
	UnreadMessages    int `json:"unread_messages"`
	ProfileViews      int `json:"profile_views"`
}

// JobPosting is a job listing as served by the gateway.
type JobPosting struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Company    string `json:"company"`
	Location   string `json:"location,omitempty"`
	Applied    bool   `json:"applied"`
	Applicants int    `json:"applicants"`
}

// PeerGroup is a professional peer group the member can join.
type PeerGroup struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Members int    `json:"members"`
	Joined  bool   `json:"joined"`
}
