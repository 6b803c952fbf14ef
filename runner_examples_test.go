package weenie_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"andy.dev/weenie"
)

var errUnavailable = errors.New("broker unavailable")

func ExampleEach() {
	connect := func(ctx context.Context) (bool, error) {
		return false, errUnavailable
	}

	eachFn := func(s weenie.Status) {
		fmt.Printf("got error while retrying: %v (%+s)\n", s.Err, s)
	}

	r := weenie.NewExponential(
		weenie.ExponentialConfig{InitialWait: time.Millisecond, MaxRetry: 5 * time.Millisecond},
		weenie.Each(eachFn),
		weenie.WithClock(newFakeClock()),
	)
	_, err := r.Run(context.Background(), connect, nil, "connect")
	if err != nil {
		fmt.Println(err)
	}
	// Output:
	// got error while retrying: broker unavailable (job connect attempt 1 - next in 1ms)
	// got error while retrying: broker unavailable (job connect attempt 2 - next in 2ms)
	// got error while retrying: broker unavailable (job connect attempt 3 - next in 2ms)
	// got error while retrying: broker unavailable (job connect attempt 4 - giving up)
	// job connect timed out after 5ms (3 retries)
}

func ExampleTimedOut() {
	r := weenie.NewPeriodic(weenie.PeriodicConfig{Interval: time.Millisecond, MaxRetry: 3 * time.Millisecond})

	_, err := r.Run(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	}, nil, "")

	if weenie.TimedOut(err) {
		fmt.Println("requeue elsewhere")
	}
	// Output:
	// requeue elsewhere
}

func ExampleNewBackoff() {
	r := weenie.NewBackoff(weenie.BackoffConfig{InitialWait: time.Millisecond, MaxJobWait: 2 * time.Millisecond})

	tries := 0
	ok, err := r.Run(context.Background(), func(context.Context) (bool, error) {
		tries++
		return false, nil
	}, nil, "")

	fmt.Println(ok, err, tries)
	// Output:
	// false <nil> 3
}

func ExampleGetStatus() {
	r := weenie.NewPeriodic(weenie.PeriodicConfig{Interval: time.Millisecond})

	ok, _ := r.Run(context.Background(), func(ctx context.Context) (bool, error) {
		try := weenie.GetStatus(ctx).Attempt
		fmt.Printf("try %d\n", try)
		return try == 3, nil
	}, nil, "")

	fmt.Println("success:", ok)
	// Output:
	// try 1
	// try 2
	// try 3
	// success: true
}
