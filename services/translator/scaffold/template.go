// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scaffold

// serverTemplate renders the self-contained Python tool server. The server
// speaks line-delimited JSON-RPC on stdio ("tools/list", "tools/call") and
// talks to the chain through web3.py. Read-only tools issue eth_call;
// mutating tools build, sign, and send a transaction.
const serverTemplate = `#!/usr/bin/env python3
"""Tool server for {{.ContractName}} ({{.ContractType}} agreement).

Generated scaffold: one tool per externally callable contract function.
{{- range .HeaderLines}}
{{.}}
{{- end}}

Environment:
    RPC_URL           JSON-RPC endpoint (default http://localhost:8545)
    CONTRACT_ADDRESS  deployed contract address (required for any call)
    PRIVATE_KEY       signing key (required for transaction tools only)
"""

import json
import os
import sys

from web3 import Web3

RPC_URL = os.environ.get("RPC_URL", "http://localhost:8545")
CONTRACT_ADDRESS = os.environ.get("CONTRACT_ADDRESS", "")
PRIVATE_KEY = os.environ.get("PRIVATE_KEY", "")

CONTRACT_ABI = json.loads(r"""
{{.ABI}}
""")

w3 = Web3(Web3.HTTPProvider(RPC_URL))


def _contract():
    if not CONTRACT_ADDRESS:
        raise RuntimeError("CONTRACT_ADDRESS is not set")
    return w3.eth.contract(
        address=Web3.to_checksum_address(CONTRACT_ADDRESS), abi=CONTRACT_ABI
    )


def _account():
    if not PRIVATE_KEY:
        raise RuntimeError("PRIVATE_KEY is not set; transaction tools need a signing key")
    return w3.eth.account.from_key(PRIVATE_KEY)


def _coerce(abi_type, value):
    """Marshal a JSON argument into the Python value web3 expects."""
    if abi_type.endswith("]"):
        element = abi_type[: abi_type.rindex("[")]
        return [_coerce(element, item) for item in value]
    if abi_type.startswith("uint") or abi_type.startswith("int"):
        return int(value)
    if abi_type == "address":
        return Web3.to_checksum_address(value)
    if abi_type == "bool":
        if isinstance(value, str):
            return value.strip().lower() in ("1", "true", "yes")
        return bool(value)
    if abi_type.startswith("bytes"):
        if isinstance(value, str) and value.startswith("0x"):
            return bytes.fromhex(value[2:])
        return value
    return value


def _require_arg(arguments, name):
    if name not in arguments:
        raise ValueError(f"missing argument: {name}")
    return arguments[name]
{{range .Tools}}

def {{.PyName}}(arguments):
    """{{.Description}}"""
    contract = _contract()
    args = [
{{- range .Params}}
        _coerce("{{.ABIType}}", _require_arg(arguments, "{{.JSONName}}")),
{{- end}}
    ]
{{- if .ReadOnly}}
    return contract.functions.{{.Name}}(*args).call()
{{- else}}
    account = _account()
    tx_params = {
        "from": account.address,
        "nonce": w3.eth.get_transaction_count(account.address),
    }
{{- if .Payable}}
    tx_params["value"] = int(arguments.get("value_wei", 0))
{{- end}}
    tx = contract.functions.{{.Name}}(*args).build_transaction(tx_params)
    signed = account.sign_transaction(tx)
    tx_hash = w3.eth.send_raw_transaction(signed.raw_transaction)
    receipt = w3.eth.wait_for_transaction_receipt(tx_hash)
    return {"tx_hash": tx_hash.hex(), "status": receipt.status}
{{- end}}
{{end}}

TOOLS = {
{{- range .Tools}}
    "{{.ToolName}}": {
        "description": "{{.Description}}",
        "read_only": {{if .ReadOnly}}True{{else}}False{{end}},
        "params": [{{range $i, $p := .Params}}{{if $i}}, {{end}}{"name": "{{$p.JSONName}}", "type": "{{$p.ABIType}}"}{{end}}],
        "handler": {{.PyName}},
    },
{{- end}}
}


def _describe(name):
    tool = TOOLS[name]
    return {
        "name": name,
        "description": tool["description"],
        "read_only": tool["read_only"],
        "params": tool["params"],
    }


def _reply(rid, result=None, error=None):
    body = {"jsonrpc": "2.0", "id": rid}
    if error is None:
        body["result"] = result
    else:
        body["error"] = {"message": error}
    print(json.dumps(body, default=str), flush=True)


def main():
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            request = json.loads(line)
        except json.JSONDecodeError as exc:
            _reply(None, error=f"bad request: {exc}")
            continue

        rid = request.get("id")
        method = request.get("method", "")
        try:
            if method == "tools/list":
                _reply(rid, result=[_describe(name) for name in sorted(TOOLS)])
            elif method == "tools/call":
                params = request.get("params") or {}
                name = params.get("name", "")
                if name not in TOOLS:
                    _reply(rid, error=f"unknown tool: {name}")
                    continue
                arguments = params.get("arguments") or {}
                _reply(rid, result=TOOLS[name]["handler"](arguments))
            else:
                _reply(rid, error=f"unknown method: {method}")
        except Exception as exc:
            _reply(rid, error=str(exc))


if __name__ == "__main__":
    main()
`
