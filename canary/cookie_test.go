package canary

import "testing"

func TestCookie(t *testing.T) {
	for _, ti := range []struct {
		msg   string
		raw   string
		name  string
		value string
		found bool
	}{{
		msg:  "empty header",
		raw:  "",
		name: "orgId",
	}, {
		msg:   "single cookie",
		raw:   "orgId=ORG_ABC",
		name:  "orgId",
		value: "ORG_ABC",
		found: true,
	}, {
		msg:   "among other cookies",
		raw:   "session=abc; orgId=ORG_ABC; theme=dark",
		name:  "orgId",
		value: "ORG_ABC",
		found: true,
	}, {
		msg:   "no space after separator",
		raw:   "session=abc;orgId=ORG_ABC",
		name:  "orgId",
		value: "ORG_ABC",
		found: true,
	}, {
		msg:  "longer name with the same suffix",
		raw:  "xorgId=ORG_EVIL",
		name: "orgId",
	}, {
		msg:  "longer name with the same prefix",
		raw:  "orgIdx=ORG_EVIL",
		name: "orgId",
	}, {
		msg:   "similar names before the exact one",
		raw:   "myorgId=ORG_EVIL; orgIdOld=ORG_OLD; orgId=ORG_ABC",
		name:  "orgId",
		value: "ORG_ABC",
		found: true,
	}, {
		msg:   "first of duplicates wins",
		raw:   "orgId=ORG_FIRST; orgId=ORG_SECOND",
		name:  "orgId",
		value: "ORG_FIRST",
		found: true,
	}, {
		msg:  "case sensitive name",
		raw:  "ORGID=ORG_ABC; orgid=ORG_ABC",
		name: "orgId",
	}, {
		msg:  "empty value",
		raw:  "orgId=; other=1",
		name: "orgId",
	}, {
		msg:   "value containing equal sign",
		raw:   "orgId=a=b",
		name:  "orgId",
		value: "a=b",
		found: true,
	}, {
		msg:   "malformed pairs are skipped",
		raw:   ";;garbage; =nokey; orgId=ORG_ABC;",
		name:  "orgId",
		value: "ORG_ABC",
		found: true,
	}, {
		msg:  "name only",
		raw:  "orgId",
		name: "orgId",
	}, {
		msg:  "empty lookup name",
		raw:  "=value",
		name: "",
	}} {
		t.Run(ti.msg, func(t *testing.T) {
			value, found := Cookie(ti.raw, ti.name)
			if found != ti.found {
				t.Fatalf("failed to detect cookie, expected found: %t, got: %t", ti.found, found)
			}

			if value != ti.value {
				t.Errorf("invalid cookie value, expected: %q, got: %q", ti.value, value)
			}
		})
	}
}

func TestHeaderCookieJoinsRecords(t *testing.T) {
	h := Header{"cookie": {
		{Key: "Cookie", Value: "session=abc"},
		{Key: "Cookie", Value: "orgId=ORG_ABC"},
	}}

	v, ok := h.Cookie(OrgCookie)
	if !ok || v != "ORG_ABC" {
		t.Errorf("failed to find cookie in the second record: %q, %t", v, ok)
	}
}
