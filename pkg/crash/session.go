package crash

import "github.com/klantle/watchdogs-sub000/pkg/models"

// Session holds the counters of one server log scan. A new session is
// created for every scan and discarded afterwards.
type Session struct {
	Server models.ServerType

	RuntimeErrorSeen bool
	CrashdetectSeen  int
	RconDefaultCount int
	VoiceSeen        int
	VoicePort        string
}

// NewSession starts an empty session for the given server flavour
func NewSession(server models.ServerType) *Session {
	return &Session{Server: server}
}

// Remedy names an auto-fix the scan can offer
type Remedy string

const (
	RemedyRecompile      Remedy = "recompile"
	RemedyVoiceDowngrade Remedy = "voice-downgrade"
	RemedyVoicePort      Remedy = "voice-port"
	RemedyRconRotate     Remedy = "rcon-rotate"
	RemedyCrashdetect    Remedy = "crashdetect-install"
)

// Resolution is how an offered remedy ended
type Resolution string

const (
	Accepted Resolution = "accepted"
	Declined Resolution = "declined"
	Failed   Resolution = "failed"
	Skipped  Resolution = "skipped"
	Reported Resolution = "reported"
)

// Offer records one remedy and its resolution
type Offer struct {
	Remedy     Remedy
	Resolution Resolution
	Detail     string
}

// Outcome is the result of a server log scan
type Outcome struct {
	Session  Session
	Lines    int
	Findings int
	Offers   []Offer
}

// Offer returns the first offer of remedy r
func (o *Outcome) Offer(r Remedy) (Offer, bool) {
	for _, of := range o.Offers {
		if of.Remedy == r {
			return of, true
		}
	}
	return Offer{}, false
}

// Offered reports whether remedy r was put to the operator or reported
func (o *Outcome) Offered(r Remedy) bool {
	_, ok := o.Offer(r)
	return ok
}

func (o *Outcome) record(r Remedy, res Resolution, detail string) {
	o.Offers = append(o.Offers, Offer{Remedy: r, Resolution: res, Detail: detail})
}
