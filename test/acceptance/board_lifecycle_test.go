package acceptance

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/harrison/undercity/internal/board"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/reconcile"
	"github.com/harrison/undercity/internal/store"
)

var _ = Describe("Task Board lifecycle", func() {
	var b *board.Board

	BeforeEach(func() {
		st, err := store.New(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		b = board.New(st)
	})

	It("gates a dependent task behind its blocker until the blocker completes", func() {
		created, err := b.AddPlan([]board.PlanTaskSpec{
			{Objective: "add a retry budget to the merge queue", Priority: 1},
			{Objective: "wire the retry budget into config", Priority: 0, DependsOnPos: []int{1}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(HaveLen(2))

		blocker, dependent := created[0], created[1]
		Expect(dependent.DependsOn).To(ConsistOf(blocker.ID))

		next, err := b.GetNextTask()
		Expect(err).NotTo(HaveOccurred())
		Expect(next.ID).To(Equal(blocker.ID), "the dependent task must not be selectable first")

		Expect(b.MarkInProgress(blocker.ID, "session-1")).To(Succeed())
		next, err = b.GetNextTask()
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(BeNil(), "no ready task while the only pending task is blocked")

		Expect(b.MarkComplete(blocker.ID)).To(Succeed())
		next, err = b.GetNextTask()
		Expect(err).NotTo(HaveOccurred())
		Expect(next.ID).To(Equal(dependent.ID))
	})

	It("reconciles a pending task already satisfied by a recent trunk commit", func() {
		task, err := b.AddTask("add a retry budget to the merge queue", 0, nil)
		Expect(err).NotTo(HaveOccurred())

		commitMessages := []string{
			"unrelated: bump dependency versions",
			"add retry budget to the merge queue",
		}
		matches := reconcile.FindMatches([]models.Task{task}, commitMessages, reconcile.DefaultThreshold)
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].Task.ID).To(Equal(task.ID))

		Expect(b.MarkReconciled(task.ID, "matched commit: "+matches[0].CommitMessage)).To(Succeed())

		got, err := b.Get(task.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(models.StatusComplete))
		Expect(got.ReconciledNote).To(ContainSubstring("add retry budget"))
	})
})
