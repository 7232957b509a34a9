package dispute

import "time"

// Outcome reports the side effects a lifecycle evaluation produced.
type Outcome struct {
	// FinishedNow is set when this evaluation decided the dispute. The
	// caller must issue exactly one release request to the custodian as
	// part of the same transaction.
	FinishedNow bool
	// Regressed is set when a tied tally reopened the dispute.
	Regressed bool
}

// Evaluate advances a dispute according to the deadline and quorum rules,
// using now as the implicit clock. It runs before every operation that
// touches the record; there is no background scheduler. The rules form an
// ordered chain checked against the mutated status, so a long-idle dispute
// can cross several phases in a single access. A tied tally regresses the
// dispute to open without re-entering the deadline rules.
func Evaluate(d Dispute, now time.Time) (Dispute, Outcome) {
	base := d.PhaseBase()
	if d.Status == StatusOpen && !now.Before(base.Add(OpenPhase)) {
		d.Status = StatusResolving
	}
	if d.Status == StatusResolving && !now.Before(base.Add(OpenPhase+ResolvePhase)) {
		d.Status = StatusExecutable
	}
	if d.Status == StatusExecutable {
		return settle(d, now)
	}
	return d, Outcome{}
}

// settle applies the executable-phase rule: tally the votes, reopen on an
// exact tie, otherwise finish the dispute and name the winner. Votes and
// evidence survive a regression (see DESIGN.md open questions).
func settle(d Dispute, now time.Time) (Dispute, Outcome) {
	pro, against := TallyVotes(d.Votes)
	if pro == against {
		reopened := now
		d.Status = StatusOpen
		d.ReopenedAt = &reopened
		return d, Outcome{Regressed: true}
	}

	winner := d.Applicant
	if against > pro {
		winner = d.Accused
	}
	finished := now

	d.Status = StatusFinished
	d.Winner = &winner
	d.FinishedAt = &finished
	return d, Outcome{FinishedNow: true}
}

// TallyVotes counts the decisions for (pro) and against the applicant.
func TallyVotes(votes []Vote) (pro, against int) {
	for _, v := range votes {
		if v.Decision {
			pro++
		} else {
			against++
		}
	}
	return pro, against
}
