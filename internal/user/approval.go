package user

import "baklava-be/internal/auth"

var approvalTransitions = map[auth.ApprovalStatus][]auth.ApprovalStatus{
	auth.ApprovalPending:     {auth.ApprovalApproved, auth.ApprovalRejected, auth.ApprovalRequestDocs},
	auth.ApprovalRequestDocs: {auth.ApprovalPending, auth.ApprovalApproved, auth.ApprovalRejected, auth.ApprovalRequestDocs},
	auth.ApprovalRejected:    {auth.ApprovalPending, auth.ApprovalApproved},
	auth.ApprovalApproved:    {auth.ApprovalRejected},
}

// CanTransitionApproval reports whether an admin may move an account from
// one approval status to another. Staying in place is always allowed.
func CanTransitionApproval(from, to auth.ApprovalStatus) bool {
	if from == to {
		return true
	}
	for _, next := range approvalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
