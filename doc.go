/*
Package weenie provides bounded retry runners for service jobs, along with the
service lifecycle pieces (see the svc and cron packages) that usually sit next
to them.

A [Runner] runs a [Job] until it reports success or until its retry budget is
spent, waiting between attempts according to a wait strategy from the backoff
package.

# Runners

Three runners cover the common cases:

	|  Constructor     | Wait                         | Budget               | When spent           |
	|------------------|------------------------------|----------------------|----------------------|
	| NewExponential   | initial, then doubled        | total elapsed time   | *TimeoutError        |
	| NewPeriodic      | initial, then fixed interval | total elapsed time   | *TimeoutError        |
	| NewBackoff       | initial, doubled up to a cap | one wait at the cap  | false, nil           |

[New] builds a runner from any [Policy].

# Retry Workflow

Jobs are run by calling [Runner.Run]. If the job returns false or an error,
it will be run again after some delay. This process will continue until one
of the following conditions occurs:
  - The job returns true.
  - The elapsed budget, which includes time spent running the job, is spent.
    Waits are shortened so that they never run past it.
  - A wait equal to the policy's cap has been used and the job fails again.
  - The context is cancelled while waiting.

Errors returned by the job, and panics inside it, are logged and retried.
They are never returned from Run.
*/
package weenie
