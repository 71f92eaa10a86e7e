// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/gatekeeper/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(migrator.Close()).To(Succeed()) })
	})

	It("starts at version zero with everything pending", func() {
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).NotTo(BeEmpty())
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Version).To(Equal(st.Applied[len(st.Applied)-1]))
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("seeds the builtin roles", func() {
		pool, err := store.NewPool(context.Background(), store.PoolConfig{URL: connStr, ConnectTries: 3}, nil)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		var names []string
		rows, err := pool.Query(context.Background(), `SELECT name FROM role ORDER BY name`)
		Expect(err).NotTo(HaveOccurred())
		for rows.Next() {
			var n string
			Expect(rows.Scan(&n)).To(Succeed())
			names = append(names, n)
		}
		Expect(rows.Err()).NotTo(HaveOccurred())
		Expect(names).To(ConsistOf("Banned", "Operator"))
	})

	It("steps down and up again", func() {
		before, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())

		Expect(migrator.Steps(-1)).To(Succeed())
		v, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(before - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		v, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(before))
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		v, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("forces a version without running migrations", func() {
		Expect(migrator.Force(1)).To(Succeed())
		v, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
	})
})
