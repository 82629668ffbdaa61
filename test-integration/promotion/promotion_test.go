package integration

import (
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/contract-promoter/internal/api/common"
	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/links"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/registry/registrytest"
	"github.com/stacklok/contract-promoter/internal/store"
	"github.com/stacklok/contract-promoter/test-integration/promotion/helpers"
)

const (
	draftVersion = "1.0.2-beta1+rev02"
	finalVersion = "1.0.2+rev02"
)

// idIs matches records whose id is id
func idIs(id string) map[string]any {
	return map[string]any{
		"type":       "object",
		"required":   []any{"id"},
		"properties": map[string]any{"id": map[string]any{"const": id}},
	}
}

// dataFieldIs matches records whose data field key equals value
func dataFieldIs(key string, value any) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"data"},
		"properties": map[string]any{
			"data": map[string]any{
				"type":       "object",
				"required":   []any{key},
				"properties": map[string]any{key: map[string]any{"const": value}},
			},
		},
	}
}

var _ = Describe("Draft promotion", Label("promotion"), func() {
	var (
		fake         *registrytest.Server
		serverHelper *helpers.ServerTestHelper
		token        string
		registryHost string
		auth         *config.AuthConfig
		drafts       []helpers.Draft
	)

	startServer := func() {
		tempDir, err := os.MkdirTemp("", "promotion-test-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tempDir)

		serverHelper = helpers.NewServerTestHelper(ctx, helpers.WriteConfigYAML(tempDir, registryHost, auth))
		Expect(serverHelper.StartServer()).To(Succeed())
		DeferCleanup(serverHelper.StopServer)
		serverHelper.WaitForServerReady(10 * time.Second)

		seeded := serverHelper.Seed(helpers.SeedDocument(drafts...))
		Expect(seeded.Sessions).To(HaveLen(1))
		token = seeded.Sessions[0].Token
	}

	promote := func(ref string) (*http.Response, *record.Record) {
		draft := serverHelper.Find(ref)
		resp, err := serverHelper.Promote(token, draft.ID, map[string]string{
			"originator": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		})
		Expect(err).NotTo(HaveOccurred())
		return resp, draft
	}

	expectStatus := func(resp *http.Response, status int) {
		defer func() {
			_ = resp.Body.Close()
		}()
		Expect(resp.StatusCode).To(Equal(status))
	}

	BeforeEach(func() {
		fake = registrytest.NewServer()
		DeferCleanup(fake.Close)
		registryHost = fake.Host()
		auth = nil
		drafts = nil
	})

	Context("draft without artifact", func() {
		BeforeEach(func() {
			drafts = []helpers.Draft{
				{Slug: "card-x", Version: draftVersion, Repository: "repo-x"},
				{Slug: "card-solo", Version: "0.1.0-rc.1"},
			}
			startServer()
		})

		It("should store the final record and link it", func() {
			resp, draft := promote("card-x@" + draftVersion)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var summary record.Summary
			helpers.DecodeJSON(resp, &summary)
			Expect(summary.Slug).To(Equal("card-x"))
			Expect(summary.Version).To(Equal(finalVersion))
			Expect(summary.Type).To(Equal("card@1.0.0"))
			Expect(summary.ID).NotTo(Equal(draft.ID))

			By("serving the final record through the API")
			getResp, err := serverHelper.GetRecord(token, summary.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(getResp.StatusCode).To(Equal(http.StatusOK))
			var final record.Record
			helpers.DecodeJSON(getResp, &final)
			Expect(final.Data).To(HaveKeyWithValue("title", "card-x"))
			Expect(final.Data).NotTo(HaveKey("$transformer"))

			By("linking the draft to the final record")
			merged, err := serverHelper.Store().Query(ctx, "", store.Query{
				Type:  "card",
				Links: []store.LinkFilter{{Verb: links.VerbMergedFrom, Schema: idIs(draft.ID)}},
			}, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(merged).To(HaveLen(1))
			Expect(merged[0].ID).To(Equal(summary.ID))

			By("adding the final record to the draft's repository")
			repos, err := serverHelper.Store().Query(ctx, "", store.Query{
				Type:  record.TypeContractRepository,
				Links: []store.LinkFilter{{Verb: links.VerbContains, Schema: idIs(summary.ID)}},
			}, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(repos).To(HaveLen(1))
			Expect(repos[0].Slug).To(Equal("repo-x"))

			By("recording who created the final record")
			events, err := serverHelper.Store().Query(ctx, "", store.Query{
				Type:   record.TypeCreateEvent,
				Schema: dataFieldIs("target", summary.ID),
			}, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(HaveKeyWithValue("actor", serverHelper.Find(helpers.ActorRef).ID))
			Expect(events[0].Data).To(HaveKeyWithValue("originator", "7c9e6679-7425-40de-944b-e07fc1f90ae7"))

			Expect(fake.Requests()).To(BeEmpty(), "no artifact means no registry traffic")
		})

		It("should promote drafts outside any repository", func() {
			resp, _ := promote("card-solo@0.1.0-rc.1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var summary record.Summary
			helpers.DecodeJSON(resp, &summary)
			Expect(summary.Version).To(Equal("0.1.0"))
		})

		It("should refuse to promote the same draft twice", func() {
			first, _ := promote("card-x@" + draftVersion)
			expectStatus(first, http.StatusOK)

			second, _ := promote("card-x@" + draftVersion)
			expectStatus(second, http.StatusConflict)
		})

		It("should refuse to promote a final record", func() {
			first, _ := promote("card-x@" + draftVersion)
			expectStatus(first, http.StatusOK)

			resp, _ := promote("card-x@" + finalVersion)
			defer func() {
				_ = resp.Body.Close()
			}()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject unknown records and bad requests", func() {
			resp, err := serverHelper.Promote(token, "00000000-0000-0000-0000-000000000000", nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNotFound)

			draft := serverHelper.Find("card-x@" + draftVersion)
			resp, err = serverHelper.Promote(token, draft.ID, map[string]string{"originator": "not-a-uuid"})
			Expect(err).NotTo(HaveOccurred())
			var body common.ErrorResponse
			helpers.DecodeJSON(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body.Error).To(ContainSubstring("originator"))
		})
	})

	Context("draft with a ready artifact", func() {
		BeforeEach(func() {
			drafts = []helpers.Draft{
				{Slug: "card-x", Version: draftVersion, Artifact: "card-x:" + draftVersion, Repository: "repo-x"},
				{Slug: "card-flag", Version: "2.0.0-alpha", Artifact: true},
				{Slug: "card-missing", Version: "3.0.0-beta.2", Artifact: true},
			}
			startServer()
			fake.PutManifest("card-x", draftVersion, registrytest.Manifest{
				MediaType: helpers.ManifestMediaType, Body: []byte(helpers.ManifestBody),
			})
			fake.PutManifest("card-flag", "2.0.0-alpha", registrytest.Manifest{
				MediaType: helpers.ManifestMediaType, Body: []byte(helpers.ManifestBody),
			})
		})

		It("should publish the artifact under the final version", func() {
			resp, _ := promote("card-x@" + draftVersion)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var summary record.Summary
			helpers.DecodeJSON(resp, &summary)

			moved, ok := fake.GetManifest("card-x", finalVersion)
			Expect(ok).To(BeTrue())
			Expect(string(moved.Body)).To(Equal(helpers.ManifestBody))
			Expect(moved.MediaType).To(Equal(helpers.ManifestMediaType))

			final, err := serverHelper.Store().GetRecord(ctx, "", summary.ID)
			Expect(err).NotTo(HaveOccurred())
			ready, _ := final.Lookup("$transformer", "artifactReady")
			Expect(ready).To(Equal("card-x:" + finalVersion))

			By("minting a session for the actor to authenticate with the registry")
			actor := serverHelper.Find(helpers.ActorRef)
			sessions, err := serverHelper.Store().Query(ctx, "", store.Query{
				Type:   record.TypeSession,
				Schema: dataFieldIs("actor", actor.ID),
			}, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2), "the seeded session and the minted one")
		})

		It("should keep a boolean flag", func() {
			resp, _ := promote("card-flag@2.0.0-alpha")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var summary record.Summary
			helpers.DecodeJSON(resp, &summary)
			Expect(summary.Version).To(Equal("2.0.0"))

			final, err := serverHelper.Store().GetRecord(ctx, "", summary.ID)
			Expect(err).NotTo(HaveOccurred())
			ready, _ := final.Lookup("$transformer", "artifactReady")
			Expect(ready).To(Equal(true))
		})

		It("should report registry failures and keep the final record", func() {
			resp, _ := promote("card-missing@3.0.0-beta.2")
			var body common.ErrorResponse
			helpers.DecodeJSON(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(body.Error).To(ContainSubstring(fake.Host()))

			final := serverHelper.Find("card-missing@3.0.0")
			ready, _ := final.Lookup("$transformer", "artifactReady")
			Expect(ready).To(Equal(false), "the artifact is not ready until it is published")

			retry, _ := promote("card-missing@3.0.0-beta.2")
			expectStatus(retry, http.StatusConflict)
		})
	})

	Context("without a registry", func() {
		BeforeEach(func() {
			registryHost = ""
			drafts = []helpers.Draft{
				{Slug: "card-x", Version: draftVersion, Artifact: "card-x:" + draftVersion},
				{Slug: "card-plain", Version: "1.1.0-beta"},
			}
			startServer()
		})

		It("should only promote drafts without an artifact", func() {
			resp, _ := promote("card-x@" + draftVersion)
			expectStatus(resp, http.StatusInternalServerError)

			finals, err := serverHelper.Store().Query(ctx, "", store.Query{
				Type: "card",
				Schema: map[string]any{"properties": map[string]any{
					"version": map[string]any{"const": finalVersion},
				}},
			}, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(finals).To(BeEmpty(), "the draft stays promotable")

			resp, _ = promote("card-plain@1.1.0-beta")
			expectStatus(resp, http.StatusOK)
		})
	})

	Context("authentication", func() {
		BeforeEach(func() {
			drafts = []helpers.Draft{{Slug: "card-x", Version: draftVersion}}
			startServer()
		})

		It("should require a valid session", func() {
			draft := serverHelper.Find("card-x@" + draftVersion)

			resp, err := serverHelper.Promote("", draft.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("WWW-Authenticate")).To(HavePrefix("Bearer"))
			expectStatus(resp, http.StatusUnauthorized)

			resp, err = serverHelper.Promote("not-a-session", draft.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("invalid_token"))
			expectStatus(resp, http.StatusUnauthorized)

			resp, err = serverHelper.GetRecord("", draft.ID)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusUnauthorized)
		})

		It("should keep the probes public", func() {
			resp, err := serverHelper.GetHealth()
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)
		})
	})

	Context("anonymous mode", func() {
		BeforeEach(func() {
			auth = &config.AuthConfig{Mode: config.AuthModeAnonymous, AnonymousActor: "ci-bot"}
			drafts = []helpers.Draft{{Slug: "card-x", Version: draftVersion}}
			startServer()
			token = ""
		})

		It("should attribute promotions to the configured actor", func() {
			resp, _ := promote("card-x@" + draftVersion)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var summary record.Summary
			helpers.DecodeJSON(resp, &summary)

			events, err := serverHelper.Store().Query(ctx, "", store.Query{
				Type:   record.TypeCreateEvent,
				Schema: dataFieldIs("target", summary.ID),
			}, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(HaveKeyWithValue("actor", "ci-bot"))
		})
	})
})
