package conversation

// Intent is the structured form of a subscriber's message. The set of
// implementations is closed; Apply switches over all of them.
type Intent interface {
	// Name is the stable wire name used by resolvers and metrics.
	Name() string
	isIntent()
}

type AddSource struct {
	// Source is the free text naming the source, empty when the resolver
	// could not isolate it.
	Source string
}

type ConfirmAddSource struct{}

type RemoveSource struct {
	Source string
}

type ChangeTime struct {
	// Time must already be normalized to HH:MM.
	Time string
}

type SetTimezone struct {
	Timezone string
}

type SetTimeAndTimezone struct {
	Time     string
	Timezone string
}

type ViewSources struct{}

type Done struct{}

type Unsubscribe struct{}

type Help struct{}

const (
	NameAddSource          = "add_source"
	NameConfirmAddSource   = "confirm_add_source"
	NameRemoveSource       = "remove_source"
	NameChangeTime         = "change_time"
	NameSetTimezone        = "set_timezone"
	NameSetTimeAndTimezone = "set_time_and_timezone"
	NameViewSources        = "view_sources"
	NameDone               = "done"
	NameUnsubscribe        = "unsubscribe"
	NameHelp               = "help"
)

func (AddSource) Name() string          { return NameAddSource }
func (ConfirmAddSource) Name() string   { return NameConfirmAddSource }
func (RemoveSource) Name() string       { return NameRemoveSource }
func (ChangeTime) Name() string         { return NameChangeTime }
func (SetTimezone) Name() string        { return NameSetTimezone }
func (SetTimeAndTimezone) Name() string { return NameSetTimeAndTimezone }
func (ViewSources) Name() string        { return NameViewSources }
func (Done) Name() string               { return NameDone }
func (Unsubscribe) Name() string        { return NameUnsubscribe }
func (Help) Name() string               { return NameHelp }

func (AddSource) isIntent()          {}
func (ConfirmAddSource) isIntent()   {}
func (RemoveSource) isIntent()       {}
func (ChangeTime) isIntent()         {}
func (SetTimezone) isIntent()        {}
func (SetTimeAndTimezone) isIntent() {}
func (ViewSources) isIntent()        {}
func (Done) isIntent()               {}
func (Unsubscribe) isIntent()        {}
func (Help) isIntent()               {}

// FromFields builds an intent from a loosely typed resolver payload.
// Unknown names fall back to Help.
func FromFields(name, source, clock, timezone string) Intent {
	switch name {
	case NameAddSource:
		return AddSource{Source: source}
	case NameConfirmAddSource:
		return ConfirmAddSource{}
	case NameRemoveSource:
		return RemoveSource{Source: source}
	case NameChangeTime:
		return ChangeTime{Time: clock}
	case NameSetTimezone:
		return SetTimezone{Timezone: timezone}
	case NameSetTimeAndTimezone:
		return SetTimeAndTimezone{Time: clock, Timezone: timezone}
	case NameViewSources:
		return ViewSources{}
	case NameDone:
		return Done{}
	case NameUnsubscribe:
		return Unsubscribe{}
	default:
		return Help{}
	}
}
