/*
Package reconciler keeps scheduled notifications consistent with the
reminder collection.

Each reminder wants one notification at Date minus the lead time. A
reconcile pass lists what the scheduler currently holds, compares it with
that desired set and issues only the difference:

	desired, not scheduled          -> create
	scheduled, reminder deleted     -> cancel
	scheduled, reminder past-due    -> cancel
	scheduled, time or text changed -> cancel, then create
	scheduled and matching          -> nothing

A reminder whose notify time is at or before now is past-due: it gets no
notification and is reported in Result.Skipped.

Notification ids have the form "reminder:<reminder id>:<lead time>". Ids
outside the "reminder:" namespace are never touched. Changing the lead time
therefore cancels every notification created under the old one.

Passes are serialized. Running the same pass twice is a no-op, so a pass
interrupted halfway is repaired by the next one.
*/
package reconciler
