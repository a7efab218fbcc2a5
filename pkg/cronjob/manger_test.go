package cronjob

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCronJob(t *testing.T) {
	Convey("CronJobManager", t, func() {
		manager := NewCronJobManager(time.Second)
		calls := 0
		ok := Job{Name: "ok", Spec: "@every 1h", Run: func(ctx context.Context) (string, error) {
			calls++
			_, hasDeadline := ctx.Deadline()
			So(hasDeadline, ShouldBeTrue)
			return "done", nil
		}}
		broken := Job{Name: "broken", Run: func(context.Context) (string, error) {
			return "", errors.New("boom")
		}}
		So(manager.AddCronJob(ok), ShouldBeNil)
		So(manager.AddCronJob(broken), ShouldBeNil)

		Convey("rejects duplicates and bad specs", func() {
			So(manager.AddCronJob(ok), ShouldNotBeNil)
			So(manager.AddCronJob(Job{Name: "bad", Spec: "every tuesday"}), ShouldNotBeNil)
		})

		Convey("lists jobs by name", func() {
			jobs := manager.Jobs()
			So(jobs, ShouldHaveLength, 2)
			So(jobs[0].Name, ShouldEqual, "broken")
			So(jobs[0].Suspended, ShouldBeTrue)
			So(jobs[1].Name, ShouldEqual, "ok")
			So(jobs[1].Suspended, ShouldBeFalse)
		})

		Convey("records manual runs newest first", func() {
			r, err := manager.RunNow(context.Background(), "ok")
			So(err, ShouldBeNil)
			So(r.Status, ShouldEqual, StatusSuccess)
			So(r.Message, ShouldEqual, "done")

			r, err = manager.RunNow(context.Background(), "broken")
			So(err, ShouldBeNil)
			So(r.Status, ShouldEqual, StatusFailed)
			So(r.Message, ShouldEqual, "boom")

			records := manager.GetCronjobRecords(nil, "")
			So(records, ShouldHaveLength, 2)
			So(records[0].Name, ShouldEqual, "broken")
			So(records[0].ID, ShouldBeGreaterThan, records[1].ID)

			So(manager.GetCronjobRecords([]string{"ok"}, ""), ShouldHaveLength, 1)
			So(manager.GetCronjobRecords(nil, StatusFailed), ShouldHaveLength, 1)
			So(calls, ShouldEqual, 1)

			_, err = manager.RunNow(context.Background(), "missing")
			So(err, ShouldNotBeNil)
		})

		Convey("suspends and resumes", func() {
			So(manager.Suspend("ok", true), ShouldBeNil)
			So(manager.Jobs()[1].Suspended, ShouldBeTrue)
			So(manager.Suspend("ok", false), ShouldBeNil)
			So(manager.Jobs()[1].Suspended, ShouldBeFalse)
			So(manager.Suspend("broken", false), ShouldNotBeNil)
		})
	})
}

func TestRecordBufferLimit(t *testing.T) {
	Convey("the record buffer keeps only the newest entries", t, func() {
		b := newRecordBuffer(3)
		for i := 0; i < 5; i++ {
			b.add(Record{Name: "job"})
		}
		So(b.items, ShouldHaveLength, 3)
		So(b.items[0].ID, ShouldEqual, uint64(3))
		So(b.items[2].ID, ShouldEqual, uint64(5))
	})
}
