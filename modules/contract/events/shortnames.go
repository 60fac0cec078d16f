package events

import "github.com/thebeyondr/sekiva/modules/common"

// Entry points one contract calls on another. Kept here so that no contract
// package has to import the one it sends to.
const (
	FACTORY_HANDLE_ORGANIZATION_EVENT common.Shortname = 0x11
	ORGANIZATION_HANDLE_BALLOT_EVENT  common.Shortname = 0x41
	BALLOT_HANDLE_ORG_EVENT           common.Shortname = 0x30
	BALLOT_SYNC_ELIGIBLE_VOTERS       common.Shortname = 0x31
)
