package processLedger

import "fmt"

// State of an incoming cross-contract event
type ProcessState uint8

const (
	Received ProcessState = iota
	Complete
	Ignored
)

func (s ProcessState) String() string {
	switch s {
	case Received:
		return "Received"
	case Complete:
		return "Complete"
	case Ignored:
		return "Ignored"
	}
	return fmt.Sprintf("ProcessState(%d)", uint8(s))
}

func (s ProcessState) CanTransition(to ProcessState) bool {
	switch s {
	case Received:
		return to == Complete || to == Ignored
	case Complete, Ignored:
		return false
	}
	return false
}

func (s ProcessState) Terminal() bool {
	return s == Complete || s == Ignored
}

// Deployment state of a ballot spawned by an organization
type BallotProcessState uint8

const (
	BallotCreated BallotProcessState = iota
	BallotDeployed
	BallotActive
	BallotTallying
	BallotCompleted
	BallotCancelled
)

func (s BallotProcessState) String() string {
	switch s {
	case BallotCreated:
		return "Created"
	case BallotDeployed:
		return "Deployed"
	case BallotActive:
		return "Active"
	case BallotTallying:
		return "Tallying"
	case BallotCompleted:
		return "Completed"
	case BallotCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("BallotProcessState(%d)", uint8(s))
}

func (s BallotProcessState) CanTransition(to BallotProcessState) bool {
	switch s {
	case BallotCreated:
		return to == BallotDeployed || to == BallotCancelled
	case BallotDeployed:
		return to == BallotActive || to == BallotCancelled
	case BallotActive:
		return to == BallotTallying || to == BallotCancelled
	case BallotTallying:
		return to == BallotCompleted || to == BallotCancelled
	case BallotCompleted, BallotCancelled:
		return false
	}
	return false
}

func (s BallotProcessState) Terminal() bool {
	return s == BallotCompleted || s == BallotCancelled
}

// Deployment state of an organization spawned by the factory
type OrganizationProcessState uint8

const (
	OrganizationCreated OrganizationProcessState = iota
	OrganizationDeployed
	OrganizationActive
	OrganizationDeleted
)

func (s OrganizationProcessState) String() string {
	switch s {
	case OrganizationCreated:
		return "Created"
	case OrganizationDeployed:
		return "Deployed"
	case OrganizationActive:
		return "Active"
	case OrganizationDeleted:
		return "Deleted"
	}
	return fmt.Sprintf("OrganizationProcessState(%d)", uint8(s))
}

func (s OrganizationProcessState) CanTransition(to OrganizationProcessState) bool {
	switch s {
	case OrganizationCreated:
		return to == OrganizationDeployed || to == OrganizationDeleted
	case OrganizationDeployed:
		return to == OrganizationActive || to == OrganizationDeleted
	case OrganizationActive:
		return to == OrganizationDeleted
	case OrganizationDeleted:
		return false
	}
	return false
}

func (s OrganizationProcessState) Terminal() bool {
	return s == OrganizationDeleted
}
