package changeengine

import "testing"

func TestRiskOrdering(t *testing.T) {
	if !(RiskLow < RiskMedium && RiskMedium < RiskHigh && RiskHigh < RiskForbidden) {
		t.Fatalf("expected Low < Medium < High < Forbidden")
	}
}

func TestCategoryDefaultRisk(t *testing.T) {
	cases := map[Category]Risk{
		CategoryCosmeticUser:   RiskLow,
		CategoryUserConfig:     RiskMedium,
		CategorySystemService:  RiskHigh,
		CategorySystemPackage:  RiskMedium,
		CategoryBootAndStorage: RiskForbidden,
	}
	for cat, want := range cases {
		if got := cat.DefaultRisk(); got != want {
			t.Errorf("%s.DefaultRisk() = %v, want %v", cat, got, want)
		}
	}
}

func TestIsForbiddenPath(t *testing.T) {
	forbidden := []string{
		"/boot/grub/grub.cfg",
		"/etc/fstab",
		"/etc/crypttab",
		"/boot/initramfs-linux.img",
		"/usr/lib/grub/i386-pc",
	}
	for _, p := range forbidden {
		if !IsForbiddenPath(p) {
			t.Errorf("expected %q to be forbidden", p)
		}
	}

	if IsForbiddenPath("/home/user/.vimrc") {
		t.Errorf("expected ordinary dotfile path to not be forbidden")
	}
}
