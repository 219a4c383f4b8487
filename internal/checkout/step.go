package checkout

import "fmt"

type Step int

const (
	StepShipping Step = iota
	StepPayment
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepSuccess:
		return "success"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type event int

const (
	evIntentCreated event = iota
	evBack
	evConfirmed
)

func (e event) String() string {
	switch e {
	case evIntentCreated:
		return "intent_created"
	case evBack:
		return "back"
	case evConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// next is the whole transition table. Success has no outgoing edges.
func next(from Step, ev event) (Step, error) {
	switch from {
	case StepShipping:
		if ev == evIntentCreated {
			return StepPayment, nil
		}
	case StepPayment:
		switch ev {
		case evBack:
			return StepShipping, nil
		case evConfirmed:
			return StepSuccess, nil
		}
	case StepSuccess:
	}
	return from, fmt.Errorf("%s from %s: %w", ev, from, ErrWrongStep)
}
