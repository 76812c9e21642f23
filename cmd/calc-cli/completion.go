package main

import "fmt"

func completionMain(args []string) {
	shell := "bash"
	if len(args) > 0 && args[0] != "" {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	default:
		log.Fatalf("unsupported shell: %s (use bash or zsh)", shell)
	}
}

const bashCompletion = `
_calc_cli_completions()
{
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "eval history features config completion --c --enable --disable --config" -- "$cur") )
        return 0
    fi

    case "${COMP_WORDS[1]}" in
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        eval)
            COMPREPLY=( $(compgen -W "--config --c --precision --timeout --no-history" -- "$cur") )
            ;;
        history)
            COMPREPLY=( $(compgen -W "--config --c --clear --json --limit" -- "$cur") )
            ;;
        *)
            COMPREPLY=( $(compgen -W "--config --c" -- "$cur") )
            ;;
    esac
}
complete -F _calc_cli_completions calc-cli
`

const zshCompletion = `
#compdef calc-cli
_calc_cli() {
    local -a subcmds
    subcmds=('eval:evaluate an expression' 'history:list or clear saved history' 'features:list feature flags' 'config:show or update the config file' 'completion:print shell completions')
    if (( CURRENT == 2 )); then
        _describe 'command' subcmds
        return
    fi
    case "$words[2]" in
        completion)
            _values 'shell' bash zsh
            ;;
        eval)
            _arguments \
                '--config[Path to config file]' \
                '--c[Config key=value override]' \
                '--precision[Significant decimal digits]' \
                '--timeout[Evaluation timeout]' \
                '--no-history[Do not record the result]'
            ;;
        history)
            _arguments \
                '--config[Path to config file]' \
                '--c[Config key=value override]' \
                '--clear[Delete all saved history]' \
                '--json[Print entries as JSON]' \
                '--limit[Show at most N entries]'
            ;;
        *)
            _arguments \
                '--config[Path to config file]' \
                '--c[Config key=value override]'
            ;;
    esac
}
_calc_cli "$@"
`
