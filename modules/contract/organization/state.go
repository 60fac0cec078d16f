package organization

import (
	"errors"
	"fmt"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrMembership     = errors.New("membership rule violated")
	ErrUnknownBallot  = errors.New("unknown ballot")
	ErrUnknownProcess = errors.New("unknown ballot process")
)

type State struct {
	Owner          common.Address   `bson:"owner"`
	Administrators []common.Address `bson:"administrators"`
	Members        []common.Address `bson:"members"`
	Ballots        []common.Address `bson:"ballots"`

	Name         string `bson:"name"`
	Description  string `bson:"description"`
	ProfileImage string `bson:"profile_image"`
	BannerImage  string `bson:"banner_image"`
	XUrl         string `bson:"x_url"`
	DiscordUrl   string `bson:"discord_url"`
	WebsiteUrl   string `bson:"website_url"`

	Factory    common.Address `bson:"factory"`
	BallotCode []byte         `bson:"ballot_code"`
	BallotAbi  []byte         `bson:"ballot_abi"`

	EventNonce      uint64                                                 `bson:"event_nonce"`
	BallotProcesses processLedger.Ledger[processLedger.BallotProcessState] `bson:"ballot_processes"`
	// ballot address -> process id of its deployment
	BallotOrigins map[string]string `bson:"ballot_origins"`
}

func (s State) Encode() ([]byte, error) {
	return bson.Marshal(s)
}

func DecodeState(b []byte) (State, error) {
	var s State
	if err := bson.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("organization state: %w", err)
	}
	return s, nil
}

func (s State) IsAdministrator(a common.Address) bool {
	return common.ContainsAddress(s.Administrators, a)
}

func (s State) IsMember(a common.Address) bool {
	return common.ContainsAddress(s.Members, a)
}

type InitArgs struct {
	Name          string         `bson:"name" validate:"required"`
	Description   string         `bson:"description" validate:"required"`
	ProfileImage  string         `bson:"profile_image"`
	BannerImage   string         `bson:"banner_image"`
	XUrl          string         `bson:"x_url"`
	DiscordUrl    string         `bson:"discord_url"`
	WebsiteUrl    string         `bson:"website_url"`
	Administrator common.Address `bson:"administrator" validate:"required"`
	BallotCode    []byte         `bson:"ballot_code" validate:"min=1"`
	BallotAbi     []byte         `bson:"ballot_abi" validate:"min=1"`
	Factory       common.Address `bson:"factory" validate:"required"`
}

func (a InitArgs) Encode() []byte {
	w := rpc.NewInvocation()
	w.WriteString(a.Name)
	w.WriteString(a.Description)
	w.WriteString(a.ProfileImage)
	w.WriteString(a.BannerImage)
	w.WriteString(a.XUrl)
	w.WriteString(a.DiscordUrl)
	w.WriteString(a.WebsiteUrl)
	a.Administrator.WriteRPC(w)
	w.WriteBytes(a.BallotCode)
	w.WriteBytes(a.BallotAbi)
	a.Factory.WriteRPC(w)
	return w.Bytes()
}

func DecodeInitArgs(b []byte) (InitArgs, error) {
	r, err := rpc.OpenInvocation(b)
	if err != nil {
		return InitArgs{}, err
	}
	a := InitArgs{
		Name:          r.ReadString(),
		Description:   r.ReadString(),
		ProfileImage:  r.ReadString(),
		BannerImage:   r.ReadString(),
		XUrl:          r.ReadString(),
		DiscordUrl:    r.ReadString(),
		WebsiteUrl:    r.ReadString(),
		Administrator: common.ReadAddress(r),
		BallotCode:    r.ReadBytes(),
		BallotAbi:     r.ReadBytes(),
		Factory:       common.ReadAddress(r),
	}
	if err := r.Finish(); err != nil {
		return InitArgs{}, err
	}
	return a, nil
}

// Arguments of deploy_ballot
type BallotInit struct {
	Options       []string
	Title         string
	Description   string
	Administrator common.Address
}

func (b BallotInit) WriteRPC(w *rpc.Writer) {
	rpc.WriteVec(w, b.Options, (*rpc.Writer).WriteString)
	w.WriteString(b.Title)
	w.WriteString(b.Description)
	b.Administrator.WriteRPC(w)
}

func ReadBallotInit(r *rpc.Reader) BallotInit {
	return BallotInit{
		Options:       rpc.ReadVec(r, (*rpc.Reader).ReadString),
		Title:         r.ReadString(),
		Description:   r.ReadString(),
		Administrator: common.ReadAddress(r),
	}
}

type PublicView struct {
	Owner          common.Address   `json:"owner"`
	Administrators []common.Address `json:"administrators"`
	Members        []common.Address `json:"members"`
	Ballots        []common.Address `json:"ballots"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	ProfileImage   string           `json:"profile_image"`
	BannerImage    string           `json:"banner_image"`
	XUrl           string           `json:"x_url"`
	DiscordUrl     string           `json:"discord_url"`
	WebsiteUrl     string           `json:"website_url"`
	Factory        common.Address   `json:"factory"`
	EventNonce     uint64           `json:"event_nonce"`
}

func (s State) View() PublicView {
	return PublicView{
		Owner:          s.Owner,
		Administrators: s.Administrators,
		Members:        s.Members,
		Ballots:        s.Ballots,
		Name:           s.Name,
		Description:    s.Description,
		ProfileImage:   s.ProfileImage,
		BannerImage:    s.BannerImage,
		XUrl:           s.XUrl,
		DiscordUrl:     s.DiscordUrl,
		WebsiteUrl:     s.WebsiteUrl,
		Factory:        s.Factory,
		EventNonce:     s.EventNonce,
	}
}
