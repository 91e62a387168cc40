package preprocessor

import (
	"strings"
	"testing"
)

const vaultSource = `pragma solidity ^0.8.0;

contract Vault {
    mapping(address => uint256) balances;

    function deposit() public payable {
        balances[msg.sender] += msg.value;
    }

    function withdraw(uint256 amount) public {
        require(balances[msg.sender] >= amount);
        balances[msg.sender] -= amount;
    }
}`

func TestPreprocessExtractsContractInfo(t *testing.T) {
	info, err := New().Preprocess(vaultSource, "ethereum")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if info.Name != "Vault" {
		t.Errorf("name = %q, want Vault", info.Name)
	}
	if info.Chain != "ethereum" {
		t.Errorf("chain = %q", info.Chain)
	}
	if info.Source != vaultSource {
		t.Errorf("source must be carried verbatim")
	}
	if info.FunctionCount != 2 {
		t.Errorf("functions = %d, want 2", info.FunctionCount)
	}
	if info.Lines != strings.Count(vaultSource, "\n")+1 {
		t.Errorf("lines = %d", info.Lines)
	}
	if info.Complexity != "simple" {
		t.Errorf("complexity = %q, want simple", info.Complexity)
	}
}

func TestPreprocessFallsBackToLibraryName(t *testing.T) {
	src := "library SafeTransfer {\n  function f() internal {}\n}"
	info, err := New().Preprocess(src, "ethereum")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "SafeTransfer" {
		t.Errorf("name = %q, want SafeTransfer", info.Name)
	}
}

func TestPreprocessUnknownName(t *testing.T) {
	info, err := New().Preprocess("function free() {}", "ethereum")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Unknown" {
		t.Errorf("name = %q, want Unknown", info.Name)
	}
}

func TestPreprocessRejectsEmptySource(t *testing.T) {
	if _, err := New().Preprocess("   \n\t ", "ethereum"); err == nil {
		t.Fatalf("blank source should be rejected")
	}
}

func TestComplexityClass(t *testing.T) {
	cases := []struct {
		lines, funcs, branches int
		want                   string
	}{
		{50, 2, 4, "simple"},
		{500, 20, 20, "moderate"},
		{2000, 60, 80, "complex"},
	}
	for _, c := range cases {
		if got := complexityClass(c.lines, c.funcs, c.branches); got != c.want {
			t.Errorf("complexityClass(%d,%d,%d) = %q, want %q", c.lines, c.funcs, c.branches, got, c.want)
		}
	}
}
