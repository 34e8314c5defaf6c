package hook

import (
	"time"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/decision"
	"github.com/jingkaihe/pkgveil/pkg/host"
)

// guard is the only entry from the host into the decision path. It never
// panics and never returns an error: any fault is logged, the installer is
// unloaded and the call passes through.
func (i *Installer) guard(uid api.UID, target *host.PackageSetting, userID int) (hide bool) {
	if i.unloaded.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			i.fail(uid, target, errx.With(ErrDecisionPanic, ": %v", r))
			hide = false
		}
	}()

	verdict, err := i.decider.Evaluate(uid, target)
	if err != nil {
		i.fail(uid, target, err)
		return false
	}
	if verdict.Hide {
		i.emit(uid, userID, verdict)
	}
	return verdict.Hide
}

func (i *Installer) fail(uid api.UID, target *host.PackageSetting, err error) {
	targetName := ""
	if target != nil {
		targetName = target.Name
	}
	i.log().Error("decision failed, unloading hook",
		"uid", int(uid),
		"target", targetName,
		"strategy", i.Strategy(),
		"error", err,
	)
	i.Unload()
}

func (i *Installer) emit(uid api.UID, userID int, verdict decision.Verdict) {
	i.eventMu.RLock()
	fn := i.eventFn
	i.eventMu.RUnlock()
	if fn == nil {
		return
	}
	fn(decision.FilterEvent{
		Session:  i.Session(),
		Strategy: i.Strategy(),
		UID:      uid,
		Caller:   verdict.Caller,
		Target:   verdict.Target,
		UserID:   userID,
		At:       time.Now().UTC(),
	})
}
